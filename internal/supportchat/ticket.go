package supportchat

import "context"

// CreateTicket opens a ticket and makes it the active conversation.
// It returns nil on failure or while another create is in flight.
func (c *Controller) CreateTicket(ctx context.Context, req CreateTicketRequest) *Ticket {
	c.mu.Lock()
	if c.closed || c.state.CreatingTicket {
		c.mu.Unlock()
		return nil
	}
	c.state.CreatingTicket = true
	c.state.TicketError = ""
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	ticket, err := c.api.CreateTicket(ctx, req)
	if err == nil && ticket == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.fail(ctx, opCreateTicket, err, ticketErrorField, func(s *State) {
			s.CreatingTicket = false
		})
		return nil
	}

	c.mutate(func(s *State) {
		s.CreatingTicket = false
	})
	c.installTicket(c.ticketContext(ctx, ticket.ID), ticket)
	c.logger.Info("support ticket created")

	result := ticket.clone()
	return &result
}

// LoadTicket fetches a ticket and its messages and makes it active
func (c *Controller) LoadTicket(ctx context.Context, ticketID string) bool {
	if c.isClosed() {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	ticket, err := c.api.GetTicket(ctx, ticketID)
	if err == nil && ticket == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.fail(ctx, opLoadTicket, err, ticketErrorField, nil)
		return false
	}

	c.installTicket(ctx, ticket)
	c.LoadMessages(ctx)
	return true
}

// CloseTicket closes the active ticket and asks for a transcript. The
// rating prompt is shown only after the server accepts the close.
func (c *Controller) CloseTicket(ctx context.Context) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	if err := c.api.CloseTicket(ctx, ticketID, true); err != nil {
		c.fail(ctx, opCloseTicket, err, ticketErrorField, nil)
		return false
	}

	var notify func()
	c.mu.Lock()
	if c.state.ticketID() == ticketID {
		c.state.CurrentTicket.Status = TicketStatusClosed
		c.state.CurrentTicket.UpdatedAt = c.opts.now()
		c.state.ShowRating = true
		c.state.AgentTyping = false
		upsertHistory(&c.state, *c.state.CurrentTicket)
		notify = c.stopTypingLocked()
	}
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
	if notify != nil {
		notify()
	}

	c.persistTicket(ctx)
	c.persistHistory(ctx)
	return true
}

// ReopenTicket reopens the active ticket after the server confirms
func (c *Controller) ReopenTicket(ctx context.Context) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	ctx = c.ticketContext(ctx, ticketID)
	reopened, err := c.api.ReopenTicket(ctx, ticketID)
	if err != nil {
		c.fail(ctx, opReopenTicket, err, ticketErrorField, nil)
		return false
	}

	c.mutate(func(s *State) {
		if s.ticketID() != ticketID {
			return
		}
		status := TicketStatusOpen
		if reopened != nil && reopened.Status != "" && !reopened.Status.Finished() {
			status = reopened.Status
		}
		s.CurrentTicket.Status = status
		s.CurrentTicket.UpdatedAt = c.opts.now()
		s.ShowRating = false
		upsertHistory(s, *s.CurrentTicket)
	})
	c.persistTicket(ctx)
	c.persistHistory(ctx)
	return true
}

// LoadTicketHistory fetches the user's most recent tickets
func (c *Controller) LoadTicketHistory(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.state.LoadingHistory = true
	c.state.HistoryError = ""
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	tickets, err := c.api.GetTicketHistory(ctx, 1, c.opts.historyPageSize)
	if err != nil {
		c.fail(ctx, opLoadHistory, err, historyErrorField, func(s *State) {
			s.LoadingHistory = false
		})
		return false
	}

	c.mutate(func(s *State) {
		s.LoadingHistory = false
		s.TicketHistory = make([]Ticket, 0, len(tickets))
		for _, t := range tickets {
			summary := t.clone()
			summary.Messages = nil
			s.TicketHistory = append(s.TicketHistory, summary)
		}
	})
	c.persistHistory(ctx)
	return true
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
