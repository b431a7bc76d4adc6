package realtime

import (
	"encoding/json"
	"time"
)

// Frame types exchanged with the support gateway.
const (
	FrameJoinTicket  = "join_ticket"
	FrameLeaveTicket = "leave_ticket"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
	FrameSupportChat = "support_chat"
	FrameAgentTyping = "agent_typing"
)

// Frame is a single WebSocket message
type Frame struct {
	Type      string          `json:"type"`
	TicketID  string          `json:"ticket_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the timestamp as RFC3339
func (f *Frame) MarshalJSON() ([]byte, error) {
	type Alias Frame
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: f.Timestamp.UTC().Format(time.RFC3339Nano),
		Alias:     (*Alias)(f),
	})
}

// UnmarshalJSON accepts an empty or RFC3339 timestamp
func (f *Frame) UnmarshalJSON(data []byte) error {
	type Alias Frame
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(f),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
		if err != nil {
			return err
		}
		f.Timestamp = t
	}

	return nil
}

// Envelope is a support chat event delivered to subscribers.
// Type is the support chat event kind, not the frame type.
type Envelope struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	TicketID string          `json:"-"`
	Seq      uint64          `json:"-"`
}

// TypingEnvelope reports the remote agent's typing state
type TypingEnvelope struct {
	TicketID string `json:"-"`
	AgentID  string `json:"agent_id,omitempty"`
	IsTyping bool   `json:"is_typing"`
}
