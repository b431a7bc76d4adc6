package supportchat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/richxcame/support-chat/pkg/realtime"
	"github.com/stretchr/testify/mock"
)

// ─── API mock ────────────────────────────────────────────────────────────────

type mockAPI struct{ mock.Mock }

func (m *mockAPI) CreateTicket(ctx context.Context, req CreateTicketRequest) (*Ticket, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Ticket), args.Error(1)
}

func (m *mockAPI) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Ticket), args.Error(1)
}

func (m *mockAPI) GetTicketHistory(ctx context.Context, page, pageSize int) ([]Ticket, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Ticket), args.Error(1)
}

func (m *mockAPI) CloseTicket(ctx context.Context, ticketID string, requestTranscript bool) error {
	args := m.Called(ctx, ticketID, requestTranscript)
	return args.Error(0)
}

func (m *mockAPI) ReopenTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Ticket), args.Error(1)
}

func (m *mockAPI) SendMessage(ctx context.Context, req SendMessageRequest) (*ChatMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatMessage), args.Error(1)
}

func (m *mockAPI) GetMessages(ctx context.Context, ticketID string) ([]ChatMessage, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChatMessage), args.Error(1)
}

func (m *mockAPI) DeleteMessage(ctx context.Context, ticketID, messageID string) error {
	args := m.Called(ctx, ticketID, messageID)
	return args.Error(0)
}

func (m *mockAPI) MarkAsRead(ctx context.Context, ticketID string, messageIDs []string) error {
	args := m.Called(ctx, ticketID, messageIDs)
	return args.Error(0)
}

func (m *mockAPI) UploadAttachment(ctx context.Context, ticketID string, upload Upload) (*Attachment, error) {
	args := m.Called(ctx, ticketID, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attachment), args.Error(1)
}

func (m *mockAPI) SearchFAQ(ctx context.Context, query string) ([]FAQSuggestion, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]FAQSuggestion), args.Error(1)
}

func (m *mockAPI) MarkFAQHelpful(ctx context.Context, faqID string, helpful bool) error {
	args := m.Called(ctx, faqID, helpful)
	return args.Error(0)
}

func (m *mockAPI) RequestCall(ctx context.Context, ticketID string) (*CallRequest, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CallRequest), args.Error(1)
}

func (m *mockAPI) AcceptCall(ctx context.Context, callID string) error {
	args := m.Called(ctx, callID)
	return args.Error(0)
}

func (m *mockAPI) RejectCall(ctx context.Context, callID string) error {
	args := m.Called(ctx, callID)
	return args.Error(0)
}

func (m *mockAPI) RequestAgent(ctx context.Context, ticketID string) (*QueueInfo, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*QueueInfo), args.Error(1)
}

func (m *mockAPI) TransferToAgent(ctx context.Context, ticketID string, req TransferRequest) error {
	args := m.Called(ctx, ticketID, req)
	return args.Error(0)
}

func (m *mockAPI) RateConversation(ctx context.Context, ticketID string, req RatingRequest) error {
	args := m.Called(ctx, ticketID, req)
	return args.Error(0)
}

// ─── channel fake ────────────────────────────────────────────────────────────

type chatSub struct {
	ticketID string
	fn       func(realtime.Envelope)
}

type typingSub struct {
	ticketID string
	fn       func(realtime.TypingEnvelope)
}

// fakeChannel records outbound calls and lets tests push lifecycle and
// support chat events synchronously.
type fakeChannel struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	nextID     int
	lifecycle  map[realtime.LifecycleEvent]map[int]func(error)
	chat       map[string]chatSub
	typing     map[string]typingSub
	everChat   map[string]chatSub
	calls      []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		lifecycle: make(map[realtime.LifecycleEvent]map[int]func(error)),
		chat:      make(map[string]chatSub),
		typing:    make(map[string]typingSub),
		everChat:  make(map[string]chatSub),
	}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.connected = true
	f.mu.Unlock()
	f.emit(realtime.EventConnected, nil)
	return nil
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	was := f.connected
	f.connected = false
	f.mu.Unlock()
	if was {
		f.emit(realtime.EventDisconnected, nil)
	}
}

func (f *fakeChannel) Status() realtime.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.Status{Connected: f.connected}
}

func (f *fakeChannel) On(event realtime.LifecycleEvent, fn func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.lifecycle[event] == nil {
		f.lifecycle[event] = make(map[int]func(error))
	}
	f.lifecycle[event][id] = fn
	return func() {
		f.mu.Lock()
		delete(f.lifecycle[event], id)
		f.mu.Unlock()
	}
}

func (f *fakeChannel) SubscribeSupportChat(ticketID string, fn func(realtime.Envelope)) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("chat-%d", f.nextID)
	f.chat[id] = chatSub{ticketID: ticketID, fn: fn}
	f.everChat[id] = f.chat[id]
	return id
}

func (f *fakeChannel) SubscribeAgentTyping(ticketID string, fn func(realtime.TypingEnvelope)) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("typing-%d", f.nextID)
	f.typing[id] = typingSub{ticketID: ticketID, fn: fn}
	return id
}

func (f *fakeChannel) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chat, id)
	delete(f.typing, id)
	f.calls = append(f.calls, "unsubscribe:"+id)
}

func (f *fakeChannel) JoinTicketRoom(ticketID, userID string) error {
	return f.record("join", ticketID)
}

func (f *fakeChannel) LeaveTicketRoom(ticketID, userID string) error {
	return f.record("leave", ticketID)
}

func (f *fakeChannel) NotifyTypingStarted(ticketID, userID string) error {
	return f.record("typing_start", ticketID)
}

func (f *fakeChannel) NotifyTypingStopped(ticketID, userID string) error {
	return f.record("typing_stop", ticketID)
}

func (f *fakeChannel) record(kind, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return realtime.ErrNotConnected
	}
	f.calls = append(f.calls, kind+":"+ticketID)
	return nil
}

func (f *fakeChannel) emit(event realtime.LifecycleEvent, err error) {
	f.mu.Lock()
	var handlers []func(error)
	for _, fn := range f.lifecycle[event] {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

// deliver pushes env to the live support chat subscriptions for its ticket
func (f *fakeChannel) deliver(env realtime.Envelope) {
	f.mu.Lock()
	var handlers []func(realtime.Envelope)
	for _, sub := range f.chat {
		if sub.ticketID == env.TicketID {
			handlers = append(handlers, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(env)
	}
}

// deliverToAll pushes env to every handler ever registered, including
// ones that have since been unsubscribed.
func (f *fakeChannel) deliverToAll(env realtime.Envelope) {
	f.mu.Lock()
	var handlers []func(realtime.Envelope)
	for _, sub := range f.everChat {
		handlers = append(handlers, sub.fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(env)
	}
}

func (f *fakeChannel) deliverTyping(env realtime.TypingEnvelope) {
	f.mu.Lock()
	var handlers []func(realtime.TypingEnvelope)
	for _, sub := range f.typing {
		if sub.ticketID == env.TicketID {
			handlers = append(handlers, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(env)
	}
}

func (f *fakeChannel) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeChannel) liveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chat) + len(f.typing)
}

// countingStore wraps a Store and counts writes
type countingStore struct {
	Store
	writes int32
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	atomic.AddInt32(&s.writes, 1)
	return s.Store.Set(ctx, key, value)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	atomic.AddInt32(&s.writes, 1)
	return s.Store.Delete(ctx, key)
}

func (s *countingStore) count() int32 {
	return atomic.LoadInt32(&s.writes)
}
