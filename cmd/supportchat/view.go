package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/richxcame/support-chat/internal/supportchat"
)

// transcript prints the changes between successive controller snapshots
// as plain lines, so the terminal reads like a chat log.
type transcript struct {
	mu  sync.Mutex
	out io.Writer

	printed     map[string]bool
	ticketID    string
	status      supportchat.TicketStatus
	agentID     string
	queuePos    int
	agentTyping bool
	connected   bool
	online      bool
	queued      int
	callID      string
	lastError   string
	showRating  bool
	faqs        string
}

func newTranscript(out io.Writer) *transcript {
	return &transcript{out: out, printed: make(map[string]bool), online: true}
}

func (t *transcript) render(s supportchat.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.CurrentTicket != nil && (s.CurrentTicket.ID != t.ticketID || s.CurrentTicket.Status != t.status) {
		tk := s.CurrentTicket
		t.linef("ticket %s %q is %s", ticketLabel(*tk), tk.Subject, tk.Status)
		t.ticketID, t.status = tk.ID, tk.Status
	}

	if s.Connected != t.connected {
		switch {
		case s.Connected:
			t.linef("connected")
		case s.Reconnecting:
			t.linef("connection lost, reconnecting")
		default:
			t.linef("disconnected")
		}
		t.connected = s.Connected
	}
	if s.Online != t.online {
		if s.Online {
			t.linef("back online")
		} else {
			t.linef("offline, messages will be sent when the network returns")
		}
		t.online = s.Online
	}

	agentID := ""
	if s.AssignedAgent != nil {
		agentID = s.AssignedAgent.ID
	}
	if agentID != t.agentID {
		if agentID != "" {
			t.linef("%s joined the conversation", s.AssignedAgent.Name)
		}
		t.agentID = agentID
	}
	if s.QueueInfo != nil && s.QueueInfo.Position != t.queuePos {
		t.linef("position in queue: %d (about %s)", s.QueueInfo.Position, s.QueueInfo.EstimatedWait.Round(time.Second))
		t.queuePos = s.QueueInfo.Position
	} else if s.QueueInfo == nil {
		t.queuePos = 0
	}

	for _, m := range s.Messages {
		if m.Pending || t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		t.linef("%s", formatMessage(m))
	}

	if s.AgentTyping && !t.agentTyping {
		t.linef("agent is typing...")
	}
	t.agentTyping = s.AgentTyping

	if n := len(s.OfflineQueue); n != t.queued {
		if n > 0 {
			t.linef("%d message(s) waiting to be sent", n)
		} else {
			t.linef("all queued messages sent")
		}
		t.queued = n
	}

	callID := ""
	if s.IncomingCall != nil {
		callID = s.IncomingCall.ID
		if callID != t.callID {
			t.linef("incoming call from %s, /accept or /reject", nonEmpty(s.IncomingCall.AgentName, "agent"))
		}
	}
	t.callID = callID

	if faqs := faqKey(s.FAQSuggestions); faqs != t.faqs {
		for _, f := range s.FAQSuggestions {
			t.linef("faq [%s] %s", f.ID, f.Question)
		}
		t.faqs = faqs
	}

	if s.ShowRating && !t.showRating {
		t.linef("how did we do? /rate 1-5 [comment]")
	}
	t.showRating = s.ShowRating

	lastError := ""
	if s.LastError != nil {
		lastError = s.LastError.Operation + ": " + s.LastError.Message
	}
	if lastError != t.lastError && lastError != "" {
		t.linef("error: %s", lastError)
	}
	t.lastError = lastError
}

func (t *transcript) linef(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

func formatMessage(m supportchat.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", m.Timestamp.Local().Format("15:04"), m.Sender, m.Content)
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, " <%s>", nonEmpty(a.Name, a.URL))
	}
	return b.String()
}

func ticketLabel(t supportchat.Ticket) string {
	return nonEmpty(t.TicketNumber, t.ID)
}

func faqKey(faqs []supportchat.FAQSuggestion) string {
	ids := make([]string, len(faqs))
	for i, f := range faqs {
		ids[i] = f.ID
	}
	return strings.Join(ids, ",")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
