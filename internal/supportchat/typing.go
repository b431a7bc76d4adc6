package supportchat

import (
	"context"
	"time"
)

// StartTyping tells the agent the user is typing. Typing-start is sent
// only when going from idle to typing; every call pushes the idle timeout
// back, after which StopTyping runs on its own.
func (c *Controller) StartTyping() {
	c.mu.Lock()
	if c.closed || c.state.CurrentTicket == nil {
		c.mu.Unlock()
		return
	}
	ticketID := c.state.CurrentTicket.ID
	wasTyping := c.typing
	c.typing = true
	c.state.UserTyping = true
	c.armTypingTimerLocked()
	connected := c.state.Connected
	var publish func()
	if !wasTyping {
		publish = c.publishLocked()
	}
	c.mu.Unlock()

	if wasTyping {
		return
	}
	publish()
	if connected {
		c.notifyChannel("typing_start", func() error { return c.channel.NotifyTypingStarted(ticketID, c.userID) })
	}
}

// StopTyping ends the typing state, sending typing-stop if it was active
func (c *Controller) StopTyping() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasTyping := c.typing
	notify := c.stopTypingLocked()
	var publish func()
	if wasTyping {
		publish = c.publishLocked()
	}
	c.mu.Unlock()

	if wasTyping {
		publish()
		notify()
	}
}

// stopTypingLocked clears the typing state and its timer. The returned
// func sends typing-stop when needed and must run after c.mu is released.
func (c *Controller) stopTypingLocked() func() {
	c.typingGen++
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	if !c.typing {
		return func() {}
	}
	c.typing = false
	c.state.UserTyping = false

	ticketID := c.state.ticketID()
	if !c.state.Connected || ticketID == "" {
		return func() {}
	}
	return func() {
		c.notifyChannel("typing_stop", func() error { return c.channel.NotifyTypingStopped(ticketID, c.userID) })
	}
}

func (c *Controller) armTypingTimerLocked() {
	c.typingGen++
	gen := c.typingGen
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.opts.typingIdle, func() { c.typingIdle(gen) })
}

func (c *Controller) typingIdle(gen uint64) {
	if !c.enter() {
		return
	}
	defer c.wg.Done()

	c.mu.Lock()
	if gen != c.typingGen {
		// Superseded by a later keystroke.
		c.mu.Unlock()
		return
	}
	c.typingTimer = nil
	wasTyping := c.typing
	notify := c.stopTypingLocked()
	var publish func()
	if wasTyping {
		publish = c.publishLocked()
	}
	c.mu.Unlock()

	if wasTyping {
		publish()
		notify()
	}
}

// scheduleDraftLocked (re)starts the debounce before the draft is saved
func (c *Controller) scheduleDraftLocked() {
	c.draftGen++
	gen := c.draftGen
	c.draftPending = true
	if c.draftTimer != nil {
		c.draftTimer.Stop()
	}
	c.draftTimer = time.AfterFunc(c.opts.draftDebounce, func() { c.saveDraft(gen) })
}

func (c *Controller) saveDraft(gen uint64) {
	if !c.enter() {
		return
	}
	defer c.wg.Done()

	c.mu.Lock()
	if gen != c.draftGen {
		c.mu.Unlock()
		return
	}
	c.draftTimer = nil
	c.draftPending = false
	text := c.state.InputText
	c.mu.Unlock()

	c.writeDraft(context.Background(), text)
}
