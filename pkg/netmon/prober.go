package netmon

import (
	"context"
	"errors"
	"time"

	"github.com/richxcame/support-chat/pkg/httpclient"
	"go.uber.org/zap"
)

// Prober polls a health URL and reports reachability transitions.
type Prober struct {
	*broadcaster
	client   *httpclient.Client
	path     string
	interval time.Duration
	logger   *zap.Logger
}

// NewProber probes url every interval with the given per-request timeout.
// The monitor starts optimistic (online) until the first probe says otherwise.
func NewProber(url string, interval, timeout time.Duration, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		broadcaster: newBroadcaster(true),
		client:      httpclient.NewClient(url, timeout),
		interval:    interval,
		logger:      logger,
	}
}

// Run probes until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe performs a single check and returns the resulting state.
func (p *Prober) Probe(ctx context.Context) bool {
	_, err := p.client.Get(ctx, p.path, nil)
	// Any HTTP answer, even an error status, proves the network is up.
	online := err == nil || isHTTPError(err)
	if ctx.Err() != nil {
		return p.Online()
	}

	if p.set(online) {
		p.logger.Info("network reachability changed", zap.Bool("online", online))
	}
	return online
}

func isHTTPError(err error) bool {
	var httpErr *httpclient.HTTPError
	return errors.As(err, &httpErr)
}
