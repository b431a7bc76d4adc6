package supportchat

// State is a point-in-time view of the session for rendering.
// Slices and pointers are copies owned by the caller.
type State struct {
	CurrentTicket  *Ticket
	TicketHistory  []Ticket
	Messages       []ChatMessage
	AssignedAgent  *SupportAgent
	QueueInfo      *QueueInfo
	OfflineQueue   []OfflineMessage
	FAQSuggestions []FAQSuggestion
	IncomingCall   *CallRequest

	Connected    bool
	Connecting   bool
	Reconnecting bool
	Online       bool
	Foreground   bool

	InputText   string
	Attachments []Attachment
	AgentTyping bool
	UserTyping  bool
	ShowRating  bool
	ShowFAQ     bool

	CreatingTicket  bool
	LoadingMessages bool
	LoadingHistory  bool
	Sending         bool

	ConnectionError string
	MessageError    string
	HistoryError    string
	TicketError     string
	LastError       *OperationError

	version uint64
}

func (s *State) clone() State {
	out := *s
	if s.CurrentTicket != nil {
		t := s.CurrentTicket.clone()
		out.CurrentTicket = &t
	}
	if s.TicketHistory != nil {
		out.TicketHistory = make([]Ticket, len(s.TicketHistory))
		for i := range s.TicketHistory {
			out.TicketHistory[i] = s.TicketHistory[i].clone()
		}
	}
	out.Messages = cloneMessages(s.Messages)
	if s.AssignedAgent != nil {
		a := *s.AssignedAgent
		out.AssignedAgent = &a
	}
	if s.QueueInfo != nil {
		q := *s.QueueInfo
		out.QueueInfo = &q
	}
	if s.OfflineQueue != nil {
		out.OfflineQueue = make([]OfflineMessage, len(s.OfflineQueue))
		for i, entry := range s.OfflineQueue {
			entry.Message = entry.Message.clone()
			out.OfflineQueue[i] = entry
		}
	}
	if s.FAQSuggestions != nil {
		out.FAQSuggestions = append([]FAQSuggestion(nil), s.FAQSuggestions...)
	}
	if s.IncomingCall != nil {
		c := *s.IncomingCall
		out.IncomingCall = &c
	}
	if s.Attachments != nil {
		out.Attachments = append([]Attachment(nil), s.Attachments...)
	}
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}

func (t Ticket) clone() Ticket {
	out := t
	if t.Rating != nil {
		r := *t.Rating
		out.Rating = &r
	}
	out.Messages = cloneMessages(t.Messages)
	if t.AssignedAgent != nil {
		a := *t.AssignedAgent
		out.AssignedAgent = &a
	}
	if t.QueueInfo != nil {
		q := *t.QueueInfo
		out.QueueInfo = &q
	}
	return out
}

func (m ChatMessage) clone() ChatMessage {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return m
}

func cloneMessages(messages []ChatMessage) []ChatMessage {
	if messages == nil {
		return nil
	}
	out := make([]ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = m.clone()
	}
	return out
}

func (s *State) messageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) offlineIndex(id string) int {
	for i := range s.OfflineQueue {
		if s.OfflineQueue[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) ticketID() string {
	if s.CurrentTicket == nil {
		return ""
	}
	return s.CurrentTicket.ID
}
