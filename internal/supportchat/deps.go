package supportchat

import (
	"context"

	"github.com/richxcame/support-chat/pkg/netmon"
	"github.com/richxcame/support-chat/pkg/realtime"
)

// API is the support REST backend
type API interface {
	CreateTicket(ctx context.Context, req CreateTicketRequest) (*Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*Ticket, error)
	GetTicketHistory(ctx context.Context, page, pageSize int) ([]Ticket, error)
	CloseTicket(ctx context.Context, ticketID string, requestTranscript bool) error
	ReopenTicket(ctx context.Context, ticketID string) (*Ticket, error)

	SendMessage(ctx context.Context, req SendMessageRequest) (*ChatMessage, error)
	GetMessages(ctx context.Context, ticketID string) ([]ChatMessage, error)
	DeleteMessage(ctx context.Context, ticketID, messageID string) error
	MarkAsRead(ctx context.Context, ticketID string, messageIDs []string) error
	UploadAttachment(ctx context.Context, ticketID string, upload Upload) (*Attachment, error)

	SearchFAQ(ctx context.Context, query string) ([]FAQSuggestion, error)
	MarkFAQHelpful(ctx context.Context, faqID string, helpful bool) error

	RequestCall(ctx context.Context, ticketID string) (*CallRequest, error)
	AcceptCall(ctx context.Context, callID string) error
	RejectCall(ctx context.Context, callID string) error

	RequestAgent(ctx context.Context, ticketID string) (*QueueInfo, error)
	TransferToAgent(ctx context.Context, ticketID string, req TransferRequest) error
	RateConversation(ctx context.Context, ticketID string, req RatingRequest) error
}

// Channel is the real-time event channel
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect()
	Status() realtime.Status
	On(event realtime.LifecycleEvent, fn func(error)) func()
	SubscribeSupportChat(ticketID string, fn func(realtime.Envelope)) string
	SubscribeAgentTyping(ticketID string, fn func(realtime.TypingEnvelope)) string
	Unsubscribe(id string)
	JoinTicketRoom(ticketID, userID string) error
	LeaveTicketRoom(ticketID, userID string) error
	NotifyTypingStarted(ticketID, userID string) error
	NotifyTypingStopped(ticketID, userID string) error
}

// Store persists session state between runs. Get returns
// kvstore.ErrNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NetworkMonitor reports reachability
type NetworkMonitor interface {
	Online() bool
	Subscribe(fn netmon.Listener) func()
}
