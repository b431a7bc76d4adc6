// Package supportchat implements the client-side session controller for a
// live support conversation: ticket lifecycle, optimistic sends, the offline
// queue, typing indicators and realtime event reconciliation.
package supportchat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/support-chat/pkg/async"
	apperrors "github.com/richxcame/support-chat/pkg/errors"
	"github.com/richxcame/support-chat/pkg/kvstore"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/netmon"
	"github.com/richxcame/support-chat/pkg/realtime"
	"go.uber.org/zap"
)

// Operation names used in errors, logs and metrics
const (
	opConnect          = "connect"
	opConnection       = "connection"
	opCreateTicket     = "create_ticket"
	opCloseTicket      = "close_ticket"
	opReopenTicket     = "reopen_ticket"
	opLoadTicket       = "load_ticket"
	opLoadHistory      = "load_history"
	opLoadMessages     = "load_messages"
	opSendMessage      = "send_message"
	opUploadAttachment = "upload_attachment"
	opDeleteMessage    = "delete_message"
	opMarkAsRead       = "mark_as_read"
	opRequestAgent     = "request_agent"
	opTransfer         = "transfer_to_agent"
	opRate             = "rate_conversation"
	opSearchFAQ        = "search_faq"
	opFAQFeedback      = "faq_feedback"
	opRequestCall      = "request_call"
	opAcceptCall       = "accept_call"
	opRejectCall       = "reject_call"
	opPersist          = "persist"
)

var userMessages = map[string]string{
	opConnect:          "Unable to connect to support chat",
	opConnection:       "Connection to support chat lost",
	opCreateTicket:     "Failed to create support ticket",
	opCloseTicket:      "Failed to close ticket",
	opReopenTicket:     "Failed to reopen ticket",
	opLoadTicket:       "Failed to load ticket",
	opLoadHistory:      "Failed to load ticket history",
	opLoadMessages:     "Failed to load messages",
	opSendMessage:      "Failed to send message",
	opUploadAttachment: "Failed to upload attachment",
	opDeleteMessage:    "Failed to delete message",
}

type errorField int

const (
	noErrorField errorField = iota
	connectionErrorField
	messageErrorField
	historyErrorField
	ticketErrorField
)

// Deps are the collaborators a Controller drives
type Deps struct {
	API     API
	Channel Channel
	Store   Store
	Network NetworkMonitor
	// UserID identifies the user to the realtime gateway
	UserID string
	Keys   kvstore.Keys
	Logger *zap.Logger
}

// Controller owns the state of one support conversation. All methods are
// safe for concurrent use; none of them return errors, failures are
// reported through the boolean/nil results and the error fields of State.
type Controller struct {
	api     API
	channel Channel
	store   Store
	network NetworkMonitor
	userID  string
	keys    kvstore.Keys
	logger  *zap.Logger
	opts    options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	tasks  *async.Group

	mu        sync.Mutex
	state     State
	started   bool
	closed    bool
	listeners map[string]func(State)

	subIDs           []string
	lifecycleCancels []func()
	networkCancel    func()
	order            *sequencer
	reorderTimer     *time.Timer
	outageReported   bool

	typing      bool
	typingGen   uint64
	typingTimer *time.Timer

	draftGen     uint64
	draftTimer   *time.Timer
	draftPending bool

	draining   bool
	drainAgain bool
	retryTimer *time.Timer

	notifyMu sync.Mutex
	notified uint64
}

// New creates a controller. Call Start before use and Close when done.
func New(deps Deps, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if deps.Store == nil {
		deps.Store = kvstore.NewMemory()
	}
	if deps.Network == nil {
		deps.Network = netmon.NewManual(true)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Named("supportchat")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:       deps.API,
		channel:   deps.Channel,
		store:     deps.Store,
		network:   deps.Network,
		userID:    deps.UserID,
		keys:      deps.Keys,
		logger:    deps.Logger,
		opts:      o,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     async.NewGroup(ctx, deps.Logger),
		listeners: make(map[string]func(State)),
		order:     newSequencer(o.reorderBuffer),
	}
}

// Start restores persisted state, subscribes to connectivity and the
// realtime lifecycle, and resumes the initial or persisted ticket.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	// Local state first so a resumed session renders before any network call.
	draft := c.loadDraft(ctx)
	queue := c.loadOfflineQueue(ctx)
	history := c.loadHistory(ctx)
	cached := c.loadCurrentTicket(ctx)

	online := c.network.Online()
	c.mutate(func(s *State) {
		s.InputText = draft
		s.OfflineQueue = queue
		s.TicketHistory = history
		s.Online = online
		if cached != nil && (c.opts.initialTicketID == "" || c.opts.initialTicketID == cached.ID) {
			t := cached.clone()
			t.Messages = nil
			s.CurrentTicket = &t
			s.Messages = dedupeMessages(cloneMessages(cached.Messages))
			s.AssignedAgent = t.AssignedAgent
			if t.AssignedAgent == nil {
				s.QueueInfo = t.QueueInfo
			}
		}
	})
	offlineQueueDepth.Set(float64(len(queue)))

	cancels := []func(){
		c.channel.On(realtime.EventConnected, c.onConnected),
		c.channel.On(realtime.EventDisconnected, c.onDisconnected),
		c.channel.On(realtime.EventReconnecting, c.onReconnecting),
		c.channel.On(realtime.EventError, c.onChannelError),
	}
	networkCancel := c.network.Subscribe(c.onNetworkChange)

	c.mu.Lock()
	c.lifecycleCancels = cancels
	c.networkCancel = networkCancel
	c.mu.Unlock()

	if c.opts.autoConnect {
		c.Connect(ctx)
	}

	ticketID := c.opts.initialTicketID
	if ticketID == "" && cached != nil {
		ticketID = cached.ID
	}
	if ticketID != "" {
		if !c.LoadTicket(ctx, ticketID) && cached != nil && cached.ID == ticketID {
			// Keep showing the cached copy and listen for updates.
			c.subscribeTicket(ctx, ticketID, "")
		}
	}

	if online && len(queue) > 0 {
		c.ProcessOfflineMessages(ctx)
	}
}

// Close leaves the ticket room, drops every subscription and timer, and
// waits for background work. The realtime channel itself stays connected
// because it is owned by the caller.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	ticketID := c.state.ticketID()
	connected := c.state.Connected
	wasTyping := c.typing
	c.typing = false
	subIDs := c.subIDs
	c.subIDs = nil
	cancels := c.lifecycleCancels
	c.lifecycleCancels = nil
	networkCancel := c.networkCancel
	c.networkCancel = nil
	c.listeners = make(map[string]func(State))

	flushDraft := c.draftPending
	draft := c.state.InputText
	c.draftPending = false
	for _, timer := range []*time.Timer{c.typingTimer, c.draftTimer, c.retryTimer, c.reorderTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
	c.typingTimer, c.draftTimer, c.retryTimer, c.reorderTimer = nil, nil, nil, nil
	// Timer callbacks already past enter see a stale generation and return.
	c.typingGen++
	c.draftGen++
	c.mu.Unlock()

	c.cancel()

	if ticketID != "" && connected {
		if wasTyping {
			c.notifyChannel(opConnection, func() error { return c.channel.NotifyTypingStopped(ticketID, c.userID) })
		}
		c.notifyChannel(opConnection, func() error { return c.channel.LeaveTicketRoom(ticketID, c.userID) })
	}
	for _, id := range subIDs {
		c.channel.Unsubscribe(id)
	}
	for _, cancel := range cancels {
		cancel()
	}
	if networkCancel != nil {
		networkCancel()
	}

	c.wg.Wait()
	c.tasks.Wait()

	if flushDraft {
		c.writeDraft(context.Background(), draft)
	}
}

// State returns a snapshot of the session
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// OnChange registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not block.
func (c *Controller) OnChange(fn func(State)) func() {
	id := uuid.NewString()
	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Connect opens the realtime channel
func (c *Controller) Connect(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.state.Connected || c.state.Connecting {
		connected := c.state.Connected
		c.mu.Unlock()
		return connected
	}
	c.state.Connecting = true
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	if err := c.channel.Connect(ctx); err != nil {
		c.fail(ctx, opConnect, err, connectionErrorField, func(s *State) {
			s.Connecting = false
		})
		return false
	}

	channelUp := c.channel.Status().Connected
	c.mu.Lock()
	missedEvent := !c.state.Connected && channelUp
	c.state.Connecting = false
	publish = c.publishLocked()
	c.mu.Unlock()
	publish()

	if missedEvent {
		// The channel was already up, so no connected event will arrive.
		c.onConnected(nil)
	}
	return true
}

// Disconnect closes the realtime channel. REST operations keep working.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ticketID := c.state.ticketID()
	connected := c.state.Connected
	stopTyping := c.stopTypingLocked()
	c.mu.Unlock()

	stopTyping()
	if connected && ticketID != "" {
		c.notifyChannel(opConnection, func() error { return c.channel.LeaveTicketRoom(ticketID, c.userID) })
	}
	c.channel.Disconnect()

	c.mutate(func(s *State) {
		s.Connected = false
		s.Connecting = false
		s.Reconnecting = false
		s.AgentTyping = false
		s.UserTyping = false
	})
}

// Reconnect drops and re-opens the realtime channel
func (c *Controller) Reconnect(ctx context.Context) bool {
	c.Disconnect()
	return c.Connect(ctx)
}

func (c *Controller) onConnected(error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	resync := c.state.Reconnecting
	c.state.Connected = true
	c.state.Connecting = false
	c.state.Reconnecting = false
	c.state.ConnectionError = ""
	ticketID := c.state.ticketID()

	var fx effects
	for _, env := range c.order.reset() {
		c.applyEnvelopeLocked(env, &fx)
	}
	c.stopReorderTimerLocked()
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
	c.runEffects(fx)

	c.logger.Info("support chat connected", zap.String("ticket_id", ticketID), zap.Bool("resync", resync))

	// Room membership does not survive a transport reconnect.
	if ticketID != "" {
		c.notifyChannel(opConnection, func() error { return c.channel.JoinTicketRoom(ticketID, c.userID) })
		if resync {
			c.background(logger.ContextWithTicketID(c.ctx, ticketID), "resync-messages", func(ctx context.Context) { c.LoadMessages(ctx) })
		}
	}
}

func (c *Controller) onDisconnected(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Connected = false
	c.state.Connecting = false
	c.state.AgentTyping = false
	c.stopTypingLocked()
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	if err != nil {
		c.logger.Warn("support chat disconnected", zap.Error(err))
	}
}

func (c *Controller) onReconnecting(error) {
	c.mutate(func(s *State) {
		s.Connected = false
		s.Reconnecting = true
		c.outageReported = false
	})
}

// onChannelError reports transport errors. While reconnecting every failed
// attempt ends up here, so only the first one of an outage is reported.
func (c *Controller) onChannelError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	repeat := c.state.Reconnecting && c.outageReported
	if c.state.Reconnecting {
		c.outageReported = true
	}
	c.mu.Unlock()

	if repeat {
		c.logger.Debug("reconnect still failing", zap.Error(err))
		return
	}
	c.fail(c.ctx, opConnection, err, connectionErrorField, nil)
}

// subscribeTicket moves realtime subscriptions and room membership to
// ticketID. prevID is the ticket being left, if any.
func (c *Controller) subscribeTicket(ctx context.Context, ticketID, prevID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	oldSubs := c.subIDs
	c.subIDs = nil
	connected := c.state.Connected
	c.order.reset()
	c.stopReorderTimerLocked()
	c.mu.Unlock()

	if connected && prevID != "" && prevID != ticketID {
		c.notifyChannel(opConnection, func() error { return c.channel.LeaveTicketRoom(prevID, c.userID) })
	}
	for _, id := range oldSubs {
		c.channel.Unsubscribe(id)
	}

	chatID := c.channel.SubscribeSupportChat(ticketID, c.handleEnvelope)
	typingID := c.channel.SubscribeAgentTyping(ticketID, c.handleTyping)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.channel.Unsubscribe(chatID)
		c.channel.Unsubscribe(typingID)
		return
	}
	c.subIDs = []string{chatID, typingID}
	connected = c.state.Connected
	c.mu.Unlock()

	if connected {
		c.notifyChannel(opConnection, func() error { return c.channel.JoinTicketRoom(ticketID, c.userID) })
	}
	logger.FromContext(ctx, c.logger).Debug("subscribed to ticket", zap.String("ticket_id", ticketID))
}

// installTicket makes t the active ticket and moves subscriptions to it
func (c *Controller) installTicket(ctx context.Context, t *Ticket) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prevID := c.state.ticketID()
	s := &c.state
	ticket := t.clone()
	ticket.Messages = nil
	s.CurrentTicket = &ticket
	s.Messages = dedupeMessages(cloneMessages(t.Messages))
	s.AssignedAgent = nil
	s.QueueInfo = nil
	if t.AssignedAgent != nil {
		agent := *t.AssignedAgent
		s.AssignedAgent = &agent
	} else if t.QueueInfo != nil {
		queue := *t.QueueInfo
		s.QueueInfo = &queue
	}
	s.AgentTyping = false
	s.IncomingCall = nil
	s.ShowRating = false
	s.MessageError = ""
	s.TicketError = ""
	upsertHistory(s, ticket)
	needSubscribe := prevID != t.ID || len(c.subIDs) == 0
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()

	if needSubscribe {
		c.subscribeTicket(ctx, t.ID, prevID)
	}
	c.persistTicket(ctx)
	c.persistHistory(ctx)
}

// mutate applies fn to the state and publishes the result
func (c *Controller) mutate(fn func(s *State)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	publish := c.publishLocked()
	c.mu.Unlock()
	publish()
}

// publishLocked snapshots the state; the returned func delivers it to
// listeners and must be called after c.mu is released.
func (c *Controller) publishLocked() func() {
	c.state.version++
	if len(c.listeners) == 0 {
		return func() {}
	}
	snapshot := c.state.clone()
	listeners := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}

	return func() {
		c.notifyMu.Lock()
		if snapshot.version <= c.notified {
			c.notifyMu.Unlock()
			return
		}
		c.notified = snapshot.version
		c.notifyMu.Unlock()

		for _, fn := range listeners {
			fn(snapshot)
		}
	}
}

// fail logs and reports err, then records it in the state
func (c *Controller) fail(ctx context.Context, op string, err error, field errorField, reset func(s *State)) {
	c.report(ctx, op, err)

	message := userMessages[op]
	if message == "" {
		message = err.Error()
	}
	c.mutate(func(s *State) {
		if reset != nil {
			reset(s)
		}
		switch field {
		case connectionErrorField:
			s.ConnectionError = message
		case messageErrorField:
			s.MessageError = message
		case historyErrorField:
			s.HistoryError = message
		case ticketErrorField:
			s.TicketError = message
		}
		s.LastError = &OperationError{Operation: op, Message: err.Error(), At: c.opts.now()}
	})
}

func (c *Controller) report(ctx context.Context, op string, err error) {
	operationFailures.WithLabelValues(op).Inc()
	logger.FromContext(ctx, c.logger).Warn("support chat operation failed",
		zap.String("operation", op),
		zap.Error(err),
	)
	if apperrors.ShouldReportError(err) {
		apperrors.CaptureError(ctx, err, map[string]string{"operation": op})
	}
}

// notifyChannel runs a realtime send. Failures are logged only; the
// channel reports transport problems through its lifecycle events.
func (c *Controller) notifyChannel(op string, send func() error) {
	if err := send(); err != nil {
		c.logger.Debug("realtime send failed", zap.String("operation", op), zap.Error(err))
	}
}

// background runs fn as a named task that Close waits for. ctx only
// contributes its log fields; the task is cancelled by Close.
func (c *Controller) background(ctx context.Context, task string, fn func(ctx context.Context)) {
	if c.isClosed() {
		return
	}
	c.tasks.Go(ctx, task, fn)
}

// enter registers work with the wait group unless the controller is closed.
// Callers must call c.wg.Done when enter returns true.
func (c *Controller) enter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *Controller) ticketContext(ctx context.Context, ticketID string) context.Context {
	if ticketID == "" {
		return ctx
	}
	return logger.ContextWithTicketID(ctx, ticketID)
}

func upsertHistory(s *State, t Ticket) {
	summary := t.clone()
	summary.Messages = nil
	for i := range s.TicketHistory {
		if s.TicketHistory[i].ID == t.ID {
			s.TicketHistory[i] = summary
			return
		}
	}
	s.TicketHistory = append([]Ticket{summary}, s.TicketHistory...)
}

func dedupeMessages(messages []ChatMessage) []ChatMessage {
	seen := make(map[string]struct{}, len(messages))
	out := messages[:0]
	for _, m := range messages {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
