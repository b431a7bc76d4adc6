package supportchat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/richxcame/support-chat/pkg/security"
)

const tempIDPrefix = "temp-"

var errEmptyResponse = errors.New("server returned no message")

// IsTemporaryID reports whether id belongs to an unconfirmed local message
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// SendMessage posts content with optional attachments to the active ticket.
//
// Online, the message is shown immediately under a temporary id and then
// replaced in place by the server copy, or removed if the send fails.
// Offline, it is queued for delivery when connectivity returns and true is
// returned without a network call. Empty messages and a missing ticket
// return false.
func (c *Controller) SendMessage(ctx context.Context, content string, attachments ...Attachment) bool {
	content = security.SanitizeMessage(content)

	c.mu.Lock()
	if c.closed || c.state.CurrentTicket == nil || (content == "" && len(attachments) == 0) {
		c.mu.Unlock()
		return false
	}
	ticketID := c.state.CurrentTicket.ID
	now := c.opts.now()
	msg := ChatMessage{
		ID:          tempIDPrefix + uuid.NewString(),
		TicketID:    ticketID,
		Content:     content,
		Sender:      SenderUser,
		Type:        messageTypeFor(attachments),
		Timestamp:   now,
		Attachments: append([]Attachment(nil), attachments...),
		Pending:     true,
	}

	if !c.network.Online() {
		c.state.Online = false
		c.state.OfflineQueue = append(c.state.OfflineQueue, OfflineMessage{
			ID:       uuid.NewString(),
			TicketID: ticketID,
			Message:  msg,
			QueuedAt: now,
			Status:   OfflineStatusQueued,
		})
		stopTyping := c.clearComposeLocked()
		publish := c.publishLocked()
		c.mu.Unlock()
		publish()
		stopTyping()

		messagesSent.WithLabelValues("queued").Inc()
		c.persistQueue(ctx)
		return true
	}

	c.state.Messages = append(c.state.Messages, msg)
	c.state.Sending = true
	c.state.MessageError = ""
	stopTyping := c.clearComposeLocked()
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
	stopTyping()

	ctx = c.ticketContext(ctx, ticketID)
	confirmed, err := c.api.SendMessage(ctx, SendMessageRequest{
		TicketID:    ticketID,
		ClientID:    msg.ID,
		Content:     msg.Content,
		Type:        msg.Type,
		Attachments: msg.Attachments,
	})
	if err == nil && confirmed == nil {
		err = errEmptyResponse
	}
	if err != nil {
		messagesSent.WithLabelValues("failed").Inc()
		c.fail(ctx, opSendMessage, err, messageErrorField, func(s *State) {
			s.Sending = false
			if i := s.messageIndex(msg.ID); i >= 0 {
				s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
			}
		})
		return false
	}

	messagesSent.WithLabelValues("delivered").Inc()
	c.mutate(func(s *State) {
		s.Sending = false
		c.confirmLocked(s, msg.ID, *confirmed)
	})
	c.background(ctx, "persist-ticket", c.persistTicket)
	return true
}

// confirmLocked swaps the optimistic copy tempID for the server message,
// keeping its position. If the server copy already arrived over the
// realtime channel the optimistic copy is simply dropped.
func (c *Controller) confirmLocked(s *State, tempID string, confirmed ChatMessage) {
	confirmed.Pending = false
	if confirmed.TicketID == "" {
		confirmed.TicketID = s.ticketID()
	}

	i := s.messageIndex(tempID)
	if s.messageIndex(confirmed.ID) >= 0 {
		if i >= 0 {
			s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
		}
		return
	}
	if i >= 0 {
		s.Messages[i] = confirmed.clone()
		return
	}
	if confirmed.TicketID == s.ticketID() {
		s.Messages = append(s.Messages, confirmed.clone())
	}
}

// LoadMessages replaces the message list with the server's copy, keeping
// optimistic messages that are still in flight.
func (c *Controller) LoadMessages(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.state.CurrentTicket == nil {
		c.mu.Unlock()
		return false
	}
	ticketID := c.state.CurrentTicket.ID
	c.state.LoadingMessages = true
	c.state.MessageError = ""
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	ctx = c.ticketContext(ctx, ticketID)
	messages, err := c.api.GetMessages(ctx, ticketID)
	if err != nil {
		c.fail(ctx, opLoadMessages, err, messageErrorField, func(s *State) {
			s.LoadingMessages = false
		})
		return false
	}

	c.mutate(func(s *State) {
		s.LoadingMessages = false
		if s.ticketID() != ticketID {
			return
		}
		merged := dedupeMessages(cloneMessages(messages))
		for _, m := range s.Messages {
			if m.Pending {
				merged = append(merged, m)
			}
		}
		s.Messages = merged
	})
	c.persistTicket(ctx)
	return true
}

// UploadAttachment uploads a file to the active ticket and stages the
// result for the next SendMessage.
func (c *Controller) UploadAttachment(ctx context.Context, upload Upload) *Attachment {
	ticketID, ok := c.activeTicket()
	if !ok {
		return nil
	}

	ctx = c.ticketContext(ctx, ticketID)
	attachment, err := c.api.UploadAttachment(ctx, ticketID, upload)
	if err == nil && attachment == nil {
		err = errEmptyResponse
	}
	if err != nil {
		c.fail(ctx, opUploadAttachment, err, messageErrorField, nil)
		return nil
	}

	c.mutate(func(s *State) {
		s.Attachments = append(s.Attachments, *attachment)
	})
	result := *attachment
	return &result
}

// DeleteMessage removes a message. Unconfirmed messages are removed
// locally without a server call.
func (c *Controller) DeleteMessage(ctx context.Context, messageID string) bool {
	ticketID, ok := c.activeTicket()
	if !ok {
		return false
	}

	if !IsTemporaryID(messageID) {
		ctx = c.ticketContext(ctx, ticketID)
		if err := c.api.DeleteMessage(ctx, ticketID, messageID); err != nil {
			c.fail(ctx, opDeleteMessage, err, messageErrorField, nil)
			return false
		}
	}

	c.mutate(func(s *State) {
		if i := s.messageIndex(messageID); i >= 0 {
			s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
		}
	})
	c.background(c.ticketContext(ctx, ticketID), "persist-ticket", c.persistTicket)
	return true
}

// MarkAsRead marks the given messages read, or every unread agent message
// when no ids are given.
func (c *Controller) MarkAsRead(ctx context.Context, messageIDs ...string) bool {
	c.mu.Lock()
	if c.closed || c.state.CurrentTicket == nil {
		c.mu.Unlock()
		return false
	}
	ticketID := c.state.CurrentTicket.ID
	if len(messageIDs) == 0 {
		messageIDs = c.unreadAgentMessagesLocked()
	}
	c.mu.Unlock()

	if len(messageIDs) == 0 {
		return true
	}

	ctx = c.ticketContext(ctx, ticketID)
	if err := c.api.MarkAsRead(ctx, ticketID, messageIDs); err != nil {
		c.fail(ctx, opMarkAsRead, err, noErrorField, nil)
		return false
	}

	c.mutate(func(s *State) {
		for _, id := range messageIDs {
			if i := s.messageIndex(id); i >= 0 {
				s.Messages[i].Read = true
			}
		}
	})
	return true
}

// SetInputText updates the compose text and schedules a draft save
func (c *Controller) SetInputText(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.InputText = text
	c.scheduleDraftLocked()
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
}

// AddAttachment stages an attachment for the next message
func (c *Controller) AddAttachment(attachment Attachment) {
	c.mutate(func(s *State) {
		s.Attachments = append(s.Attachments, attachment)
	})
}

// RemoveAttachment unstages the attachment with the given id
func (c *Controller) RemoveAttachment(attachmentID string) {
	c.mutate(func(s *State) {
		for i := range s.Attachments {
			if s.Attachments[i].ID == attachmentID {
				s.Attachments = append(s.Attachments[:i], s.Attachments[i+1:]...)
				return
			}
		}
	})
}

// ClearAttachments unstages every attachment
func (c *Controller) ClearAttachments() {
	c.mutate(func(s *State) {
		s.Attachments = nil
	})
}

// clearComposeLocked empties the compose box after a send. The returned
// func sends typing-stop and must run after c.mu is released.
func (c *Controller) clearComposeLocked() func() {
	c.state.InputText = ""
	c.state.Attachments = nil
	c.scheduleDraftLocked()
	return c.stopTypingLocked()
}

func (c *Controller) unreadAgentMessagesLocked() []string {
	var ids []string
	for _, m := range c.state.Messages {
		if m.Sender == SenderAgent && !m.Read {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (c *Controller) activeTicket() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.CurrentTicket == nil {
		return "", false
	}
	return c.state.CurrentTicket.ID, true
}

func messageTypeFor(attachments []Attachment) MessageType {
	for _, a := range attachments {
		if strings.HasPrefix(a.MimeType, "image/") {
			return MessageTypeImage
		}
	}
	return MessageTypeText
}
