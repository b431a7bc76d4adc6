package supportchat

import (
	"context"

	"github.com/richxcame/support-chat/pkg/kvstore"
	"go.uber.org/zap"
)

func (c *Controller) loadDraft(ctx context.Context) string {
	draft, err := c.store.Get(ctx, c.keys.Draft())
	if err != nil {
		if !kvstore.IsNotFound(err) {
			c.report(ctx, opPersist, err)
		}
		return ""
	}
	return draft
}

func (c *Controller) loadOfflineQueue(ctx context.Context) []OfflineMessage {
	var queue []OfflineMessage
	if err := kvstore.GetJSON(ctx, c.store, c.keys.OfflineQueue(), &queue); err != nil {
		if !kvstore.IsNotFound(err) {
			c.report(ctx, opPersist, err)
		}
		return nil
	}
	return queue
}

func (c *Controller) loadHistory(ctx context.Context) []Ticket {
	var history []Ticket
	if err := kvstore.GetJSON(ctx, c.store, c.keys.TicketHistory(), &history); err != nil {
		if !kvstore.IsNotFound(err) {
			c.report(ctx, opPersist, err)
		}
		return nil
	}
	return history
}

func (c *Controller) loadCurrentTicket(ctx context.Context) *Ticket {
	var ticket Ticket
	if err := kvstore.GetJSON(ctx, c.store, c.keys.CurrentTicket(), &ticket); err != nil {
		if !kvstore.IsNotFound(err) {
			c.report(ctx, opPersist, err)
		}
		return nil
	}
	if ticket.ID == "" {
		return nil
	}
	return &ticket
}

// persistTicket caches the active ticket with its confirmed messages
func (c *Controller) persistTicket(ctx context.Context) {
	c.mu.Lock()
	if c.state.CurrentTicket == nil {
		c.mu.Unlock()
		c.deleteKey(ctx, c.keys.CurrentTicket())
		return
	}
	ticket := c.state.CurrentTicket.clone()
	ticket.Messages = nil
	for _, m := range c.state.Messages {
		if !m.Pending {
			ticket.Messages = append(ticket.Messages, m.clone())
		}
	}
	ticket.AssignedAgent, ticket.QueueInfo = nil, nil
	if a := c.state.AssignedAgent; a != nil {
		agent := *a
		ticket.AssignedAgent = &agent
	}
	if q := c.state.QueueInfo; q != nil {
		queue := *q
		ticket.QueueInfo = &queue
	}
	c.mu.Unlock()

	c.writeJSON(ctx, c.keys.CurrentTicket(), ticket)
}

func (c *Controller) persistHistory(ctx context.Context) {
	c.mu.Lock()
	history := c.state.clone().TicketHistory
	c.mu.Unlock()

	c.writeJSON(ctx, c.keys.TicketHistory(), history)
}

func (c *Controller) persistQueue(ctx context.Context) {
	c.mu.Lock()
	queue := c.state.clone().OfflineQueue
	c.mu.Unlock()

	offlineQueueDepth.Set(float64(len(queue)))
	if len(queue) == 0 {
		c.deleteKey(ctx, c.keys.OfflineQueue())
		return
	}
	c.writeJSON(ctx, c.keys.OfflineQueue(), queue)
}

// writeDraft stores text, removing the key when it is empty
func (c *Controller) writeDraft(ctx context.Context, text string) {
	if text == "" {
		c.deleteKey(ctx, c.keys.Draft())
		return
	}
	if err := c.store.Set(ctx, c.keys.Draft(), text); err != nil {
		c.report(ctx, opPersist, err)
	}
}

func (c *Controller) writeJSON(ctx context.Context, key string, value interface{}) {
	if err := kvstore.SetJSON(ctx, c.store, key, value); err != nil {
		c.report(ctx, opPersist, err)
		return
	}
	c.logger.Debug("persisted", zap.String("key", key))
}

func (c *Controller) deleteKey(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil && !kvstore.IsNotFound(err) {
		c.report(ctx, opPersist, err)
	}
}
