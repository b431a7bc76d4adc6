package netmon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualNotifiesOnTransitionsOnly(t *testing.T) {
	m := NewManual(true)

	var mu sync.Mutex
	var seen []bool
	cancel := m.Subscribe(func(s Status) {
		mu.Lock()
		seen = append(seen, s.Online)
		mu.Unlock()
	})

	m.Set(true)
	m.Set(false)
	m.Set(false)
	m.Set(true)

	mu.Lock()
	assert.Equal(t, []bool{false, true}, seen)
	mu.Unlock()

	cancel()
	m.Set(false)

	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
	assert.False(t, m.Online())
}

func TestProberDetectsOutageAndRecovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	p := NewProber(server.URL, time.Hour, 200*time.Millisecond, nil)
	changes := make(chan bool, 4)
	p.Subscribe(func(s Status) { changes <- s.Online })

	assert.True(t, p.Probe(context.Background()))
	assert.Len(t, changes, 0)

	server.Close()
	assert.False(t, p.Probe(context.Background()))
	require.Len(t, changes, 1)
	assert.False(t, <-changes)
	assert.False(t, p.Status().Online)
}

func TestProberTreatsErrorStatusAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProber(server.URL, time.Hour, time.Second, nil)
	assert.True(t, p.Probe(context.Background()))
}

func TestProberRunStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := NewProber(server.URL, 10*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
