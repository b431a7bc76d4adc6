package supportchat

import (
	"context"
	"time"

	"github.com/richxcame/support-chat/pkg/netmon"
	"go.uber.org/zap"
)

const minRetryWait = 100 * time.Millisecond

// onNetworkChange drains the offline queue when connectivity returns
func (c *Controller) onNetworkChange(status netmon.Status) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasOnline := c.state.Online
	c.state.Online = status.Online
	if !status.Online && c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	pending := len(c.state.OfflineQueue) > 0
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	c.logger.Info("network status changed", zap.Bool("online", status.Online))
	if !wasOnline && status.Online && pending {
		c.background(c.ctx, "drain-offline-queue", func(ctx context.Context) { c.ProcessOfflineMessages(ctx) })
	}
}

// ProcessOfflineMessages resends queued messages that are due and returns
// how many were delivered. Failures stay queued with a backoff; after the
// retry cap they are abandoned and only RetryOfflineMessage resends them.
// A call made while a drain is running makes that drain go round again.
func (c *Controller) ProcessOfflineMessages(ctx context.Context) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	if c.draining {
		c.drainAgain = true
		c.mu.Unlock()
		return 0
	}
	c.draining = true
	c.mu.Unlock()

	sent, attempted := 0, 0
	for {
		due := c.dueOfflineMessages()
		attempted += len(due)
		for _, entry := range due {
			if ctx.Err() != nil {
				break
			}
			if c.resend(ctx, entry) {
				sent++
			}
		}

		c.mu.Lock()
		again := c.drainAgain && !c.closed && ctx.Err() == nil
		c.drainAgain = false
		if !again {
			c.draining = false
		}
		c.mu.Unlock()
		if !again {
			break
		}
	}

	c.persistQueue(ctx)
	c.scheduleRetry()
	if attempted > 0 {
		c.logger.Info("processed offline messages", zap.Int("attempted", attempted), zap.Int("sent", sent))
	}
	return sent
}

func (c *Controller) dueOfflineMessages() []OfflineMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.opts.now()
	var due []OfflineMessage
	for _, entry := range c.state.OfflineQueue {
		if entry.Status == OfflineStatusAbandoned || entry.NextAttemptAt.After(now) {
			continue
		}
		entry.Message = entry.Message.clone()
		due = append(due, entry)
	}
	return due
}

// resend delivers one queued message and updates its queue entry
func (c *Controller) resend(ctx context.Context, entry OfflineMessage) bool {
	ctx = c.ticketContext(ctx, entry.TicketID)
	confirmed, err := c.api.SendMessage(ctx, SendMessageRequest{
		TicketID:    entry.TicketID,
		ClientID:    entry.Message.ID,
		Content:     entry.Message.Content,
		Type:        entry.Message.Type,
		Attachments: entry.Message.Attachments,
	})
	if err == nil && confirmed == nil {
		err = errEmptyResponse
	}

	if err != nil {
		c.report(ctx, opSendMessage, err)
		var abandoned bool
		c.mutate(func(s *State) {
			i := s.offlineIndex(entry.ID)
			if i < 0 {
				return
			}
			e := &s.OfflineQueue[i]
			e.RetryCount++
			e.Status = OfflineStatusFailed
			e.LastError = err.Error()
			e.NextAttemptAt = c.opts.now().Add(c.opts.offlineBackoff.Delay(e.RetryCount))
			if c.opts.maxOfflineRetries > 0 && e.RetryCount >= c.opts.maxOfflineRetries {
				e.Status = OfflineStatusAbandoned
				e.NextAttemptAt = time.Time{}
				abandoned = true
			}
		})
		if abandoned {
			offlineDrainResults.WithLabelValues("abandoned").Inc()
			c.logger.Warn("offline message abandoned", zap.String("offline_id", entry.ID))
		} else {
			offlineDrainResults.WithLabelValues("failed").Inc()
		}
		return false
	}

	offlineDrainResults.WithLabelValues("sent").Inc()
	messagesSent.WithLabelValues("delivered").Inc()
	c.mutate(func(s *State) {
		if i := s.offlineIndex(entry.ID); i >= 0 {
			s.OfflineQueue = append(s.OfflineQueue[:i], s.OfflineQueue[i+1:]...)
		}
		if entry.TicketID == s.ticketID() {
			c.confirmLocked(s, entry.Message.ID, *confirmed)
		}
	})
	return true
}

// RetryOfflineMessage makes a failed or abandoned entry due immediately
// with a fresh retry budget and resends it if online.
func (c *Controller) RetryOfflineMessage(ctx context.Context, offlineID string) bool {
	found := false
	c.mutate(func(s *State) {
		i := s.offlineIndex(offlineID)
		if i < 0 {
			return
		}
		found = true
		e := &s.OfflineQueue[i]
		e.Status = OfflineStatusQueued
		e.RetryCount = 0
		e.NextAttemptAt = time.Time{}
		e.LastError = ""
	})
	if !found {
		return false
	}

	c.persistQueue(ctx)
	if c.network.Online() {
		c.ProcessOfflineMessages(ctx)
	}
	return true
}

// DiscardOfflineMessage drops an entry from the offline queue
func (c *Controller) DiscardOfflineMessage(ctx context.Context, offlineID string) bool {
	found := false
	c.mutate(func(s *State) {
		if i := s.offlineIndex(offlineID); i >= 0 {
			s.OfflineQueue = append(s.OfflineQueue[:i], s.OfflineQueue[i+1:]...)
			found = true
		}
	})
	if found {
		c.persistQueue(ctx)
	}
	return found
}

// scheduleRetry arms a timer for the earliest failed entry while online
func (c *Controller) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if !c.state.Online {
		return
	}

	var next time.Time
	for _, entry := range c.state.OfflineQueue {
		if entry.Status != OfflineStatusFailed {
			continue
		}
		if next.IsZero() || entry.NextAttemptAt.Before(next) {
			next = entry.NextAttemptAt
		}
	}
	if next.IsZero() {
		return
	}

	wait := next.Sub(c.opts.now())
	if wait < minRetryWait {
		wait = minRetryWait
	}
	c.retryTimer = time.AfterFunc(wait, func() {
		if !c.enter() {
			return
		}
		defer c.wg.Done()
		c.ProcessOfflineMessages(c.ctx)
	})
}
