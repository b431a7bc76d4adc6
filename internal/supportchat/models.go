package supportchat

import (
	"encoding/json"
	"io"
	"time"
)

// TicketStatus represents the status of a support ticket
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Finished reports whether the conversation has ended
func (s TicketStatus) Finished() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority represents the priority of a support ticket
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// MessageSender represents who sent the message
type MessageSender string

const (
	SenderUser   MessageSender = "user"
	SenderAgent  MessageSender = "agent"
	SenderSystem MessageSender = "system"
)

// MessageType classifies chat messages
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

// AgentStatus is the presence of a support agent
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusAway      AgentStatus = "away"
	AgentStatusOffline   AgentStatus = "offline"
)

// OfflineStatus tracks a queued message
type OfflineStatus string

const (
	OfflineStatusQueued    OfflineStatus = "queued"
	OfflineStatusFailed    OfflineStatus = "failed"
	OfflineStatusAbandoned OfflineStatus = "abandoned"
)

// Ticket is one support conversation
type Ticket struct {
	ID            string         `json:"id"`
	TicketNumber  string         `json:"ticket_number,omitempty"`
	Subject       string         `json:"subject"`
	Category      string         `json:"category,omitempty"`
	Priority      TicketPriority `json:"priority,omitempty"`
	Status        TicketStatus   `json:"status"`
	Rating        *int           `json:"rating,omitempty"`
	RatingComment string         `json:"rating_comment,omitempty"`
	Messages      []ChatMessage  `json:"messages,omitempty"`
	AssignedAgent *SupportAgent  `json:"assigned_agent,omitempty"`
	QueueInfo     *QueueInfo     `json:"queue_info,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ChatMessage is a single message in a ticket
type ChatMessage struct {
	ID          string        `json:"id"`
	TicketID    string        `json:"ticket_id"`
	Content     string        `json:"content"`
	Sender      MessageSender `json:"sender"`
	Type        MessageType   `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	Read        bool          `json:"read"`
	Delivered   bool          `json:"delivered"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	// Pending is set on optimistic copies awaiting server confirmation
	Pending bool `json:"pending,omitempty"`
}

// Attachment is an uploaded file referenced by a message
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// SupportAgent is the human or bot handling the ticket
type SupportAgent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	Status    AgentStatus `json:"status,omitempty"`
}

// QueueInfo describes the wait before an agent is assigned
type QueueInfo struct {
	Position      int
	EstimatedWait time.Duration
	QueueLength   int
}

type queueInfoJSON struct {
	Position    int `json:"position"`
	WaitSeconds int `json:"estimated_wait_seconds"`
	QueueLength int `json:"queue_length,omitempty"`
}

// MarshalJSON encodes the wait in whole seconds
func (q QueueInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(queueInfoJSON{
		Position:    q.Position,
		WaitSeconds: int(q.EstimatedWait / time.Second),
		QueueLength: q.QueueLength,
	})
}

// UnmarshalJSON decodes the wait from whole seconds
func (q *QueueInfo) UnmarshalJSON(data []byte) error {
	var aux queueInfoJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q.Position = aux.Position
	q.EstimatedWait = time.Duration(aux.WaitSeconds) * time.Second
	q.QueueLength = aux.QueueLength
	return nil
}

// OfflineMessage is a message held locally until the network returns
type OfflineMessage struct {
	ID            string        `json:"id"`
	TicketID      string        `json:"ticket_id"`
	Message       ChatMessage   `json:"message"`
	QueuedAt      time.Time     `json:"queued_at"`
	RetryCount    int           `json:"retry_count"`
	Status        OfflineStatus `json:"status"`
	NextAttemptAt time.Time     `json:"next_attempt_at,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
}

// FAQSuggestion is a help article offered to the user
type FAQSuggestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
	Helpful  *bool  `json:"helpful,omitempty"`
}

// CallRequest is an agent's offer to move the conversation to a call
type CallRequest struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	AgentID     string    `json:"agent_id,omitempty"`
	AgentName   string    `json:"agent_name,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// OperationError records the most recent failed operation
type OperationError struct {
	Operation string
	Message   string
	At        time.Time
}

// ========================================
// REQUEST TYPES
// ========================================

// CreateTicketRequest opens a new ticket
type CreateTicketRequest struct {
	Subject     string         `json:"subject" validate:"required,notblank,min=3,max=200"`
	Category    string         `json:"category,omitempty" validate:"omitempty,max=50"`
	Priority    TicketPriority `json:"priority,omitempty" validate:"omitempty,ticket_priority"`
	Message     string         `json:"message" validate:"max=5000"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// SendMessageRequest posts a message to a ticket. ClientID is the
// temporary id of the optimistic copy and doubles as the idempotency key.
type SendMessageRequest struct {
	TicketID    string       `json:"-" validate:"required"`
	ClientID    string       `json:"client_id,omitempty"`
	Content     string       `json:"content" validate:"required_without=Attachments,max=5000"`
	Type        MessageType  `json:"type" validate:"required,message_type"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Upload is a file to attach to a ticket
type Upload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// TransferRequest hands the conversation to another agent or department
type TransferRequest struct {
	AgentID    string `json:"agent_id,omitempty" validate:"required_without=Department"`
	Department string `json:"department,omitempty"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

// RatingRequest rates a finished conversation
type RatingRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}
