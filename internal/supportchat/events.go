package supportchat

import (
	"encoding/json"
	"fmt"

	"github.com/richxcame/support-chat/pkg/realtime"
)

// Support chat event kinds carried in the realtime envelope
const (
	EventTypeMessageReceived         = "new_message"
	EventTypeAgentAssigned           = "agent_assigned"
	EventTypeAgentStatusChanged      = "agent_status_changed"
	EventTypeQueuePositionUpdated    = "queue_position_updated"
	EventTypeTicketStatusChanged     = "ticket_status_changed"
	EventTypeConversationTransferred = "conversation_transferred"
	EventTypeMessageDelivered        = "message_delivered"
	EventTypeMessageRead             = "message_read"
	EventTypeFAQSuggested            = "faq_suggested"
	EventTypeCallRequested           = "call_request"
	EventTypeTyping                  = "typing"
)

// Event is an inbound support chat event. The set of implementations is closed.
type Event interface {
	EventType() string
	isEvent()
}

// MessageReceived carries a new agent, system or echoed user message
type MessageReceived struct {
	Message ChatMessage
}

// AgentAssigned means an agent picked up the ticket
type AgentAssigned struct {
	Agent SupportAgent
}

// AgentStatusChanged updates the assigned agent's presence
type AgentStatusChanged struct {
	AgentID string      `json:"agent_id"`
	Status  AgentStatus `json:"status"`
}

// QueuePositionUpdated refreshes the wait while unassigned
type QueuePositionUpdated struct {
	Queue QueueInfo
}

// TicketStatusChanged moves the ticket through its lifecycle
type TicketStatusChanged struct {
	TicketID string       `json:"ticket_id"`
	Status   TicketStatus `json:"status"`
}

// ConversationTransferred releases the current agent
type ConversationTransferred struct {
	FromAgentID string        `json:"from_agent_id,omitempty"`
	ToAgent     *SupportAgent `json:"to_agent,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// MessageDelivered marks messages delivered to the agent
type MessageDelivered struct {
	MessageIDs []string `json:"message_ids"`
}

// MessageRead marks messages read by the agent
type MessageRead struct {
	MessageIDs []string `json:"message_ids"`
}

// FAQSuggested pushes help articles relevant to the conversation
type FAQSuggested struct {
	Suggestions []FAQSuggestion `json:"suggestions"`
}

// CallRequested offers a call to the user
type CallRequested struct {
	Call CallRequest
}

// TypingChanged reports the agent typing indicator
type TypingChanged struct {
	AgentID  string
	IsTyping bool
}

// UnknownEvent is an event kind this client does not understand
type UnknownEvent struct {
	Type string
	Data json.RawMessage
}

func (MessageReceived) EventType() string         { return EventTypeMessageReceived }
func (AgentAssigned) EventType() string           { return EventTypeAgentAssigned }
func (AgentStatusChanged) EventType() string      { return EventTypeAgentStatusChanged }
func (QueuePositionUpdated) EventType() string    { return EventTypeQueuePositionUpdated }
func (TicketStatusChanged) EventType() string     { return EventTypeTicketStatusChanged }
func (ConversationTransferred) EventType() string { return EventTypeConversationTransferred }
func (MessageDelivered) EventType() string        { return EventTypeMessageDelivered }
func (MessageRead) EventType() string             { return EventTypeMessageRead }
func (FAQSuggested) EventType() string            { return EventTypeFAQSuggested }
func (CallRequested) EventType() string           { return EventTypeCallRequested }
func (TypingChanged) EventType() string           { return EventTypeTyping }
func (e UnknownEvent) EventType() string          { return e.Type }

func (MessageReceived) isEvent()         {}
func (AgentAssigned) isEvent()           {}
func (AgentStatusChanged) isEvent()      {}
func (QueuePositionUpdated) isEvent()    {}
func (TicketStatusChanged) isEvent()     {}
func (ConversationTransferred) isEvent() {}
func (MessageDelivered) isEvent()        {}
func (MessageRead) isEvent()             {}
func (FAQSuggested) isEvent()            {}
func (CallRequested) isEvent()           {}
func (TypingChanged) isEvent()           {}
func (UnknownEvent) isEvent()            {}

// DecodeEvent maps a realtime envelope to its event variant.
// Unrecognised kinds decode to UnknownEvent without error.
func DecodeEvent(env realtime.Envelope) (Event, error) {
	var (
		event Event
		err   error
	)

	switch env.Type {
	case EventTypeMessageReceived:
		var e MessageReceived
		err = decodeData(env, &e.Message)
		event = e
	case EventTypeAgentAssigned:
		var e AgentAssigned
		err = decodeData(env, &e.Agent)
		event = e
	case EventTypeAgentStatusChanged:
		var e AgentStatusChanged
		err = decodeData(env, &e)
		event = e
	case EventTypeQueuePositionUpdated:
		var e QueuePositionUpdated
		err = decodeData(env, &e.Queue)
		event = e
	case EventTypeTicketStatusChanged:
		var e TicketStatusChanged
		err = decodeData(env, &e)
		if e.TicketID == "" {
			e.TicketID = env.TicketID
		}
		event = e
	case EventTypeConversationTransferred:
		var e ConversationTransferred
		err = decodeData(env, &e)
		event = e
	case EventTypeMessageDelivered:
		var e MessageDelivered
		err = decodeData(env, &e)
		event = e
	case EventTypeMessageRead:
		var e MessageRead
		err = decodeData(env, &e)
		event = e
	case EventTypeFAQSuggested:
		var e FAQSuggested
		err = decodeData(env, &e)
		event = e
	case EventTypeCallRequested:
		var e CallRequested
		err = decodeData(env, &e.Call)
		if e.Call.TicketID == "" {
			e.Call.TicketID = env.TicketID
		}
		event = e
	default:
		return UnknownEvent{Type: env.Type, Data: env.Data}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", env.Type, err)
	}
	return event, nil
}

// typingEvent converts the separate typing channel into an Event
func typingEvent(env realtime.TypingEnvelope) Event {
	return TypingChanged{AgentID: env.AgentID, IsTyping: env.IsTyping}
}

func decodeData(env realtime.Envelope, target interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(env.Data, target)
}
