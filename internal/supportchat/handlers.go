package supportchat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/support-chat/pkg/realtime"
	"go.uber.org/zap"
)

// effects are follow-up calls an event requires once the lock is released
type effects struct {
	markRead      []string
	persistTicket bool
}

func (c *Controller) handleEnvelope(env realtime.Envelope) {
	c.mu.Lock()
	if c.closed || (env.TicketID != "" && env.TicketID != c.state.ticketID()) {
		c.mu.Unlock()
		return
	}

	ready := c.order.push(env)
	if c.order.waiting() {
		c.armReorderTimerLocked()
	} else {
		c.stopReorderTimerLocked()
	}
	if len(ready) == 0 {
		c.mu.Unlock()
		return
	}

	var fx effects
	for _, e := range ready {
		c.applyEnvelopeLocked(e, &fx)
	}
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
	c.runEffects(fx)
}

func (c *Controller) handleTyping(env realtime.TypingEnvelope) {
	c.mu.Lock()
	if c.closed || (env.TicketID != "" && env.TicketID != c.state.ticketID()) {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.applyLocked(typingEvent(env), &fx)
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
}

func (c *Controller) applyEnvelopeLocked(env realtime.Envelope, fx *effects) {
	event, err := DecodeEvent(env)
	if err != nil {
		c.logger.Warn("dropping undecodable support chat event",
			zap.String("type", env.Type),
			zap.Uint64("seq", env.Seq),
			zap.Error(err),
		)
		realtimeEvents.WithLabelValues("invalid").Inc()
		return
	}
	c.applyLocked(event, fx)
}

// applyLocked performs the single state mutation each event maps to
func (c *Controller) applyLocked(event Event, fx *effects) {
	s := &c.state
	label := event.EventType()

	switch e := event.(type) {
	case MessageReceived:
		if s.messageIndex(e.Message.ID) >= 0 {
			// Echo of a message we already hold.
			return
		}
		msg := e.Message.clone()
		if msg.TicketID == "" {
			msg.TicketID = s.ticketID()
		}
		s.Messages = append(s.Messages, msg)
		if msg.Sender == SenderAgent {
			s.AgentTyping = false
			if s.Foreground && !msg.Read {
				fx.markRead = append(fx.markRead, msg.ID)
			}
		}

	case AgentAssigned:
		agent := e.Agent
		s.AssignedAgent = &agent
		s.QueueInfo = nil
		s.Messages = append(s.Messages, c.systemMessageLocked(fmt.Sprintf("%s has joined the conversation", agent.Name)))
		fx.persistTicket = true

	case AgentStatusChanged:
		if s.AssignedAgent != nil && (e.AgentID == "" || e.AgentID == s.AssignedAgent.ID) {
			// Snapshots may share the old value, so replace it.
			agent := *s.AssignedAgent
			agent.Status = e.Status
			s.AssignedAgent = &agent
		}

	case QueuePositionUpdated:
		// Queue data only means something before an agent is assigned.
		if s.AssignedAgent == nil {
			queue := e.Queue
			s.QueueInfo = &queue
		}

	case TicketStatusChanged:
		if s.CurrentTicket == nil || (e.TicketID != "" && e.TicketID != s.CurrentTicket.ID) {
			return
		}
		s.CurrentTicket.Status = e.Status
		s.CurrentTicket.UpdatedAt = c.opts.now()
		if e.Status.Finished() {
			s.ShowRating = true
			s.AgentTyping = false
		}
		upsertHistory(s, *s.CurrentTicket)
		fx.persistTicket = true

	case ConversationTransferred:
		s.AssignedAgent = nil
		s.AgentTyping = false
		text := "Your conversation is being transferred"
		if e.ToAgent != nil && e.ToAgent.Name != "" {
			text = fmt.Sprintf("Your conversation has been transferred to %s", e.ToAgent.Name)
		}
		s.Messages = append(s.Messages, c.systemMessageLocked(text))
		fx.persistTicket = true

	case MessageDelivered:
		for _, id := range e.MessageIDs {
			if i := s.messageIndex(id); i >= 0 {
				s.Messages[i].Delivered = true
			}
		}

	case MessageRead:
		for _, id := range e.MessageIDs {
			if i := s.messageIndex(id); i >= 0 {
				s.Messages[i].Read = true
				s.Messages[i].Delivered = true
			}
		}

	case FAQSuggested:
		s.FAQSuggestions = append([]FAQSuggestion(nil), e.Suggestions...)
		s.ShowFAQ = len(e.Suggestions) > 0

	case CallRequested:
		call := e.Call
		s.IncomingCall = &call

	case TypingChanged:
		s.AgentTyping = e.IsTyping

	case UnknownEvent:
		c.logger.Debug("ignoring unknown support chat event", zap.String("type", e.Type))
		label = "unknown"
	}

	realtimeEvents.WithLabelValues(label).Inc()
}

func (c *Controller) systemMessageLocked(text string) ChatMessage {
	return ChatMessage{
		ID:        "system-" + uuid.NewString(),
		TicketID:  c.state.ticketID(),
		Content:   text,
		Sender:    SenderSystem,
		Type:      MessageTypeSystem,
		Timestamp: c.opts.now(),
		Read:      true,
		Delivered: true,
	}
}

func (c *Controller) runEffects(fx effects) {
	if len(fx.markRead) > 0 {
		ids := fx.markRead
		c.background(c.ctx, "auto-read", func(ctx context.Context) { c.MarkAsRead(ctx, ids...) })
	}
	if fx.persistTicket {
		c.background(c.ctx, "persist-ticket", c.persistTicket)
	}
}

func (c *Controller) armReorderTimerLocked() {
	if c.reorderTimer != nil || c.opts.reorderWait <= 0 {
		return
	}
	c.reorderTimer = time.AfterFunc(c.opts.reorderWait, c.flushReorder)
}

func (c *Controller) stopReorderTimerLocked() {
	if c.reorderTimer != nil {
		c.reorderTimer.Stop()
		c.reorderTimer = nil
	}
}

// flushReorder gives up on a sequence gap that stayed open too long
func (c *Controller) flushReorder() {
	if !c.enter() {
		return
	}
	defer c.wg.Done()

	c.mu.Lock()
	c.reorderTimer = nil
	ready := c.order.flush()
	if len(ready) == 0 {
		c.mu.Unlock()
		return
	}
	c.logger.Debug("skipping sequence gap", zap.Int("released", len(ready)))

	var fx effects
	for _, env := range ready {
		c.applyEnvelopeLocked(env, &fx)
	}
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
	c.runEffects(fx)
}
