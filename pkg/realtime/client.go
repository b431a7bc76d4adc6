// Package realtime is the client side of the support gateway WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/support-chat/pkg/resilience"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Default ping period; the read deadline is derived from it
	defaultPingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	sendBufferSize = 256
)

var (
	// ErrNotConnected is returned by outbound calls while no connection is up
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrSendBufferFull is returned when the writer cannot keep up
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// LifecycleEvent names a connection state change
type LifecycleEvent string

const (
	EventConnected    LifecycleEvent = "connected"
	EventDisconnected LifecycleEvent = "disconnected"
	EventReconnecting LifecycleEvent = "reconnecting"
	EventError        LifecycleEvent = "error"
)

// Status is the connection state
type Status struct {
	Connected    bool
	Connecting   bool
	Reconnecting bool
}

// TokenSource supplies the bearer token used during the handshake
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type subscriptionKind int

const (
	kindSupportChat subscriptionKind = iota
	kindAgentTyping
)

type subscription struct {
	kind     subscriptionKind
	ticketID string
	chat     func(Envelope)
	typing   func(TypingEnvelope)
}

// session is one physical connection and its pumps
type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// Client maintains a reconnecting WebSocket to the support gateway
type Client struct {
	url        string
	dialer     *websocket.Dialer
	tokens     TokenSource
	backoff    resilience.Backoff
	pingPeriod time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	status    Status
	session   *session
	runCtx    context.Context
	stop      context.CancelFunc
	lifecycle map[LifecycleEvent]map[string]func(error)
	subs      map[string]subscription
}

// Option configures the client
type Option func(*Client)

// WithTokenSource sends an Authorization bearer header on every dial
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithBackoff sets the reconnect schedule
func WithBackoff(backoff resilience.Backoff) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// WithPingPeriod sets the keepalive interval
func WithPingPeriod(period time.Duration) Option {
	return func(c *Client) {
		c.pingPeriod = period
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialer replaces the default websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// NewClient creates a client for the gateway at url (ws:// or wss://)
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		backoff:    resilience.DefaultBackoff(),
		pingPeriod: defaultPingPeriod,
		logger:     zap.NewNop(),
		lifecycle:  make(map[LifecycleEvent]map[string]func(error)),
		subs:       make(map[string]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the gateway. Once connected, dropped connections are
// re-established in the background until Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil || c.status.Connecting || c.status.Reconnecting {
		c.mu.Unlock()
		return nil
	}
	c.status.Connecting = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	if !c.status.Connecting {
		// Disconnect was called while dialing.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrNotConnected
	}
	c.status.Connecting = false
	if err != nil {
		c.mu.Unlock()
		c.emit(EventError, err)
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.runCtx, c.stop = context.WithCancel(context.Background())
	c.attachLocked(conn)
	c.mu.Unlock()

	c.logger.Info("realtime connected", zap.String("url", c.url))
	c.emit(EventConnected, nil)
	return nil
}

// Disconnect closes the connection and stops reconnecting
func (c *Client) Disconnect() {
	c.mu.Lock()
	s := c.session
	wasActive := s != nil || c.status.Reconnecting
	c.session = nil
	if c.stop != nil {
		c.stop()
	}
	c.runCtx, c.stop = nil, nil
	c.status = Status{}
	c.mu.Unlock()

	if s != nil {
		s.close()
	}
	connectedGauge.Set(0)
	if wasActive {
		c.emit(EventDisconnected, nil)
	}
}

// Status returns the current connection state
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// On registers fn for a lifecycle event and returns a func that removes it.
// The error argument is nil for connected.
func (c *Client) On(event LifecycleEvent, fn func(error)) func() {
	id := uuid.NewString()
	c.mu.Lock()
	if c.lifecycle[event] == nil {
		c.lifecycle[event] = make(map[string]func(error))
	}
	c.lifecycle[event][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.lifecycle[event], id)
		c.mu.Unlock()
	}
}

// SubscribeSupportChat delivers support chat events for ticketID
func (c *Client) SubscribeSupportChat(ticketID string, fn func(Envelope)) string {
	return c.subscribe(subscription{kind: kindSupportChat, ticketID: ticketID, chat: fn})
}

// SubscribeAgentTyping delivers agent typing updates for ticketID
func (c *Client) SubscribeAgentTyping(ticketID string, fn func(TypingEnvelope)) string {
	return c.subscribe(subscription{kind: kindAgentTyping, ticketID: ticketID, typing: fn})
}

// Unsubscribe removes a subscription; unknown ids are ignored
func (c *Client) Unsubscribe(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

// JoinTicketRoom asks the gateway to route ticket events to this connection
func (c *Client) JoinTicketRoom(ticketID, userID string) error {
	return c.sendFrame(FrameJoinTicket, ticketID, userID)
}

// LeaveTicketRoom stops routing ticket events to this connection
func (c *Client) LeaveTicketRoom(ticketID, userID string) error {
	return c.sendFrame(FrameLeaveTicket, ticketID, userID)
}

// NotifyTypingStarted tells the agent the user is typing
func (c *Client) NotifyTypingStarted(ticketID, userID string) error {
	return c.sendFrame(FrameTypingStart, ticketID, userID)
}

// NotifyTypingStopped tells the agent the user stopped typing
func (c *Client) NotifyTypingStopped(ticketID, userID string) error {
	return c.sendFrame(FrameTypingStop, ticketID, userID)
}

func (c *Client) subscribe(sub subscription) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()
	return id
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// attachLocked starts the pumps for conn. c.mu must be held.
func (c *Client) attachLocked(conn *websocket.Conn) {
	s := &session{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	c.session = s
	c.status = Status{Connected: true}
	connectedGauge.Set(1)

	go c.writePump(s)
	go c.readPump(s)
}

// readPump delivers frames from the connection to subscribers
func (c *Client) readPump(s *session) {
	pongWait := c.pingPeriod * 10 / 9

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var readErr error
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		c.dispatch(&frame)
	}

	s.close()
	if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.Warn("realtime connection lost", zap.Error(readErr))
	}
	c.connectionLost(s, readErr)
}

// writePump sends queued frames and keepalive pings
func (c *Client) writePump(s *session) {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) connectionLost(s *session, err error) {
	c.mu.Lock()
	if c.session != s {
		// Replaced or closed by Disconnect.
		c.mu.Unlock()
		return
	}
	c.session = nil
	runCtx := c.runCtx
	c.status = Status{Reconnecting: runCtx != nil}
	c.mu.Unlock()

	connectedGauge.Set(0)
	c.emit(EventDisconnected, err)
	if runCtx == nil {
		return
	}
	c.emit(EventReconnecting, err)
	go c.reconnect(runCtx)
}

func (c *Client) reconnect(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(c.backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		reconnectAttempts.Inc()
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			c.emit(EventError, err)
			continue
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.attachLocked(conn)
		c.mu.Unlock()

		c.logger.Info("realtime reconnected", zap.Int("attempt", attempt))
		c.emit(EventConnected, nil)
		return
	}
}

func (c *Client) dispatch(frame *Frame) {
	framesReceived.WithLabelValues(frame.Type).Inc()

	switch frame.Type {
	case FrameSupportChat:
		var env Envelope
		if err := json.Unmarshal(frame.Data, &env); err != nil {
			c.logger.Warn("dropping malformed support chat frame", zap.Error(err))
			return
		}
		env.TicketID = frame.TicketID
		env.Seq = frame.Seq
		for _, sub := range c.subscribers(kindSupportChat, frame.TicketID) {
			sub.chat(env)
		}

	case FrameAgentTyping:
		var env TypingEnvelope
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &env); err != nil {
				c.logger.Warn("dropping malformed typing frame", zap.Error(err))
				return
			}
		}
		env.TicketID = frame.TicketID
		for _, sub := range c.subscribers(kindAgentTyping, frame.TicketID) {
			sub.typing(env)
		}

	default:
		c.logger.Debug("ignoring frame", zap.String("type", frame.Type))
	}
}

func (c *Client) subscribers(kind subscriptionKind, ticketID string) []subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []subscription
	for _, sub := range c.subs {
		if sub.kind == kind && sub.ticketID == ticketID {
			matched = append(matched, sub)
		}
	}
	return matched
}

func (c *Client) emit(event LifecycleEvent, err error) {
	c.mu.Lock()
	handlers := make([]func(error), 0, len(c.lifecycle[event]))
	for _, fn := range c.lifecycle[event] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(err)
	}
}

func (c *Client) sendFrame(frameType, ticketID, userID string) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(&Frame{
		Type:      frameType,
		TicketID:  ticketID,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", frameType, err)
	}

	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	select {
	case s.send <- payload:
		framesSent.WithLabelValues(frameType).Inc()
		return nil
	default:
		return ErrSendBufferFull
	}
}
