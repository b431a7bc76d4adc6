package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/richxcame/support-chat/internal/supportchat"
	"github.com/stretchr/testify/assert"
)

func TestTranscript_PrintsEachMessageOnce(t *testing.T) {
	var buf bytes.Buffer
	view := newTranscript(&buf)

	state := supportchat.State{
		Online:        true,
		CurrentTicket: &supportchat.Ticket{ID: "t1", TicketNumber: "SUP-1", Subject: "Refund", Status: supportchat.TicketStatusOpen},
		Messages: []supportchat.ChatMessage{
			{ID: "m1", Sender: supportchat.SenderAgent, Content: "Hi there", Timestamp: time.Now()},
			{ID: "temp_x", Sender: supportchat.SenderUser, Content: "pending", Pending: true},
		},
	}
	view.render(state)
	view.render(state)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Hi there"))
	assert.NotContains(t, out, "pending")
	assert.Contains(t, out, `ticket SUP-1 "Refund" is open`)
}

func TestTranscript_ReportsTransitions(t *testing.T) {
	var buf bytes.Buffer
	view := newTranscript(&buf)

	view.render(supportchat.State{
		Online:    false,
		QueueInfo: &supportchat.QueueInfo{Position: 3, EstimatedWait: 90 * time.Second},
		OfflineQueue: []supportchat.OfflineMessage{
			{ID: "o1"},
		},
	})
	view.render(supportchat.State{
		Online:        true,
		Connected:     true,
		AssignedAgent: &supportchat.SupportAgent{ID: "a1", Name: "Asha"},
		AgentTyping:   true,
		ShowRating:    true,
		IncomingCall:  &supportchat.CallRequest{ID: "c1", AgentName: "Asha"},
		LastError:     &supportchat.OperationError{Operation: "send message", Message: "boom"},
	})

	out := buf.String()
	assert.Contains(t, out, "offline, messages will be sent")
	assert.Contains(t, out, "position in queue: 3 (about 1m30s)")
	assert.Contains(t, out, "1 message(s) waiting to be sent")
	assert.Contains(t, out, "back online")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "Asha joined the conversation")
	assert.Contains(t, out, "agent is typing...")
	assert.Contains(t, out, "all queued messages sent")
	assert.Contains(t, out, "/rate 1-5")
	assert.Contains(t, out, "incoming call from Asha")
	assert.Contains(t, out, "error: send message: boom")
}

func TestPrintTickets(t *testing.T) {
	var buf bytes.Buffer
	err := printTickets(&buf, []supportchat.Ticket{
		{ID: "t1", Subject: "Refund", Status: supportchat.TicketStatusResolved},
	})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "TICKET")
	assert.Contains(t, buf.String(), "Refund")

	buf.Reset()
	assert.NoError(t, printTickets(&buf, nil))
	assert.Equal(t, "No tickets found.\n", buf.String())
}
