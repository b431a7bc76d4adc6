package supportchat

import (
	"time"

	"github.com/richxcame/support-chat/pkg/config"
	"github.com/richxcame/support-chat/pkg/resilience"
)

const (
	defaultTypingIdle      = 3 * time.Second
	defaultDraftDebounce   = time.Second
	defaultMaxRetries      = 5
	defaultReorderBuffer   = 64
	defaultReorderWait     = 2 * time.Second
	defaultHistoryPageSize = 20
)

type options struct {
	typingIdle        time.Duration
	draftDebounce     time.Duration
	maxOfflineRetries int
	offlineBackoff    resilience.Backoff
	reorderBuffer     int
	reorderWait       time.Duration
	historyPageSize   int
	initialTicketID   string
	autoConnect       bool
	now               func() time.Time
}

func defaultOptions() options {
	return options{
		typingIdle:        defaultTypingIdle,
		draftDebounce:     defaultDraftDebounce,
		maxOfflineRetries: defaultMaxRetries,
		offlineBackoff: resilience.Backoff{
			Initial:    2 * time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2,
		},
		reorderBuffer:   defaultReorderBuffer,
		reorderWait:     defaultReorderWait,
		historyPageSize: defaultHistoryPageSize,
		now:             time.Now,
	}
}

// Option configures a Controller
type Option func(*options)

// WithTypingIdle sets how long after the last keystroke typing stops
func WithTypingIdle(d time.Duration) Option {
	return func(o *options) {
		o.typingIdle = d
	}
}

// WithDraftDebounce sets the delay before compose text is saved
func WithDraftDebounce(d time.Duration) Option {
	return func(o *options) {
		o.draftDebounce = d
	}
}

// WithOfflineRetry caps resend attempts for queued messages (0 means
// unlimited) and sets the delay between attempts.
func WithOfflineRetry(maxRetries int, backoff resilience.Backoff) Option {
	return func(o *options) {
		o.maxOfflineRetries = maxRetries
		o.offlineBackoff = backoff
	}
}

// WithReorderBuffer bounds how many out-of-order events are held and how
// long a sequence gap may stay open.
func WithReorderBuffer(size int, wait time.Duration) Option {
	return func(o *options) {
		o.reorderBuffer = size
		o.reorderWait = wait
	}
}

// WithHistoryPageSize sets how many tickets LoadTicketHistory fetches
func WithHistoryPageSize(n int) Option {
	return func(o *options) {
		o.historyPageSize = n
	}
}

// WithInitialTicket resumes the given ticket on Start instead of the
// persisted one.
func WithInitialTicket(ticketID string) Option {
	return func(o *options) {
		o.initialTicketID = ticketID
	}
}

// WithAutoConnect connects the realtime channel during Start
func WithAutoConnect(enabled bool) Option {
	return func(o *options) {
		o.autoConnect = enabled
	}
}

// WithClock replaces time.Now for timestamps and retry scheduling
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// OptionsFromConfig maps the chat section of the client configuration
func OptionsFromConfig(cfg config.ChatConfig) []Option {
	initial, maxDelay := cfg.OfflineBackoff()
	return []Option{
		WithTypingIdle(cfg.TypingIdle()),
		WithDraftDebounce(cfg.DraftDebounce()),
		WithOfflineRetry(cfg.OfflineMaxRetries, resilience.Backoff{
			Initial:    initial,
			Max:        maxDelay,
			Multiplier: 2,
		}),
		WithReorderBuffer(cfg.ReorderBufferSize, defaultReorderWait),
	}
}
