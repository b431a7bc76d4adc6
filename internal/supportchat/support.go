package supportchat

import "context"

// RequestAgent asks for a human agent and shows the resulting queue position
func (c *Controller) RequestAgent(ctx context.Context) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	queue, err := c.api.RequestAgent(ctx, ticketID)
	if err != nil {
		c.fail(ctx, opRequestAgent, err, noErrorField, nil)
		return false
	}

	if queue != nil {
		c.mutate(func(s *State) {
			if s.AssignedAgent == nil && s.ticketID() == ticketID {
				q := *queue
				s.QueueInfo = &q
			}
		})
	}
	return true
}

// TransferToAgent asks the server to hand the conversation over. The
// agent change itself arrives as realtime events.
func (c *Controller) TransferToAgent(ctx context.Context, req TransferRequest) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	if err := c.api.TransferToAgent(ctx, ticketID, req); err != nil {
		c.fail(ctx, opTransfer, err, noErrorField, nil)
		return false
	}
	return true
}

// RateConversation submits a 1-5 rating for the active ticket
func (c *Controller) RateConversation(ctx context.Context, rating int, comment string) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	if err := c.api.RateConversation(ctx, ticketID, RatingRequest{Rating: rating, Comment: comment}); err != nil {
		c.fail(ctx, opRate, err, noErrorField, nil)
		return false
	}

	c.mutate(func(s *State) {
		if s.ticketID() != ticketID {
			return
		}
		r := rating
		s.CurrentTicket.Rating = &r
		s.CurrentTicket.RatingComment = comment
		s.ShowRating = false
		upsertHistory(s, *s.CurrentTicket)
	})
	c.persistTicket(ctx)
	return true
}

// SearchFAQ replaces the suggestion list with results for query
func (c *Controller) SearchFAQ(ctx context.Context, query string) []FAQSuggestion {
	if c.isClosed() {
		return nil
	}

	results, err := c.api.SearchFAQ(ctx, query)
	if err != nil {
		c.fail(ctx, opSearchFAQ, err, noErrorField, nil)
		return nil
	}

	c.mutate(func(s *State) {
		s.FAQSuggestions = append([]FAQSuggestion(nil), results...)
	})
	return append([]FAQSuggestion(nil), results...)
}

// MarkFAQHelpful sends feedback on a suggestion
func (c *Controller) MarkFAQHelpful(ctx context.Context, faqID string, helpful bool) bool {
	if c.isClosed() {
		return false
	}
	if err := c.api.MarkFAQHelpful(ctx, faqID, helpful); err != nil {
		c.fail(ctx, opFAQFeedback, err, noErrorField, nil)
		return false
	}
	return true
}

// RequestCall asks for a call about the active ticket
func (c *Controller) RequestCall(ctx context.Context) *CallRequest {
	ticketID, ok := c.activeTicket()
	if !ok {
		return nil
	}

	ctx = c.ticketContext(ctx, ticketID)
	call, err := c.api.RequestCall(ctx, ticketID)
	if err == nil && call == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.fail(ctx, opRequestCall, err, noErrorField, nil)
		return nil
	}
	result := *call
	return &result
}

// AcceptCall accepts an incoming call request
func (c *Controller) AcceptCall(ctx context.Context, callID string) bool {
	return c.answerCall(ctx, opAcceptCall, callID, c.api.AcceptCall)
}

// RejectCall declines an incoming call request
func (c *Controller) RejectCall(ctx context.Context, callID string) bool {
	return c.answerCall(ctx, opRejectCall, callID, c.api.RejectCall)
}

func (c *Controller) answerCall(ctx context.Context, op, callID string, answer func(context.Context, string) error) bool {
	if c.isClosed() {
		return false
	}
	if err := answer(ctx, callID); err != nil {
		c.fail(ctx, op, err, noErrorField, nil)
		return false
	}
	c.mutate(func(s *State) {
		if s.IncomingCall != nil && s.IncomingCall.ID == callID {
			s.IncomingCall = nil
		}
	})
	return true
}

// ShowRating opens the rating prompt
func (c *Controller) ShowRating() {
	c.mutate(func(s *State) { s.ShowRating = true })
}

// HideRating dismisses the rating prompt
func (c *Controller) HideRating() {
	c.mutate(func(s *State) { s.ShowRating = false })
}

// ShowFAQ opens the FAQ panel
func (c *Controller) ShowFAQ() {
	c.mutate(func(s *State) { s.ShowFAQ = true })
}

// HideFAQ closes the FAQ panel
func (c *Controller) HideFAQ() {
	c.mutate(func(s *State) { s.ShowFAQ = false })
}

// ToggleFAQ flips the FAQ panel
func (c *Controller) ToggleFAQ() {
	c.mutate(func(s *State) { s.ShowFAQ = !s.ShowFAQ })
}

// SetForeground tells the controller whether the chat is on screen. While
// it is, incoming agent messages are marked read automatically; coming to
// the foreground marks everything already received.
func (c *Controller) SetForeground(foreground bool) {
	c.mu.Lock()
	if c.closed || c.state.Foreground == foreground {
		c.mu.Unlock()
		return
	}
	c.state.Foreground = foreground
	var unread []string
	if foreground && c.state.CurrentTicket != nil {
		unread = c.unreadAgentMessagesLocked()
	}
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	if len(unread) > 0 {
		c.background(c.ctx, "auto-read", func(ctx context.Context) { c.MarkAsRead(ctx, unread...) })
	}
}
