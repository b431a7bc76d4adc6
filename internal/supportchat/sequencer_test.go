package supportchat

import (
	"testing"

	"github.com/richxcame/support-chat/pkg/realtime"
	"github.com/stretchr/testify/assert"
)

func seqs(envs []realtime.Envelope) []uint64 {
	out := make([]uint64, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Seq)
	}
	return out
}

func TestSequencer_InOrder(t *testing.T) {
	s := newSequencer(4)

	assert.Equal(t, []uint64{10}, seqs(s.push(realtime.Envelope{Seq: 10})))
	assert.Equal(t, []uint64{11}, seqs(s.push(realtime.Envelope{Seq: 11})))
	assert.False(t, s.waiting())
}

func TestSequencer_UnsequencedPassThrough(t *testing.T) {
	s := newSequencer(4)
	s.push(realtime.Envelope{Seq: 1})
	s.push(realtime.Envelope{Seq: 3})

	ready := s.push(realtime.Envelope{Type: "typing"})
	assert.Len(t, ready, 1)
	assert.True(t, s.waiting())
}

func TestSequencer_FillsGap(t *testing.T) {
	s := newSequencer(4)
	s.push(realtime.Envelope{Seq: 1})

	assert.Empty(t, s.push(realtime.Envelope{Seq: 4}))
	assert.Empty(t, s.push(realtime.Envelope{Seq: 3}))
	assert.True(t, s.waiting())

	assert.Equal(t, []uint64{2, 3, 4}, seqs(s.push(realtime.Envelope{Seq: 2})))
	assert.False(t, s.waiting())
}

func TestSequencer_DropsDuplicates(t *testing.T) {
	s := newSequencer(4)
	s.push(realtime.Envelope{Seq: 1})
	s.push(realtime.Envelope{Seq: 2})
	s.push(realtime.Envelope{Seq: 4})

	assert.Empty(t, s.push(realtime.Envelope{Seq: 2}))
	assert.Empty(t, s.push(realtime.Envelope{Seq: 4}))
	assert.Equal(t, []uint64{3, 4}, seqs(s.push(realtime.Envelope{Seq: 3})))
}

func TestSequencer_OverflowFlushes(t *testing.T) {
	s := newSequencer(2)
	s.push(realtime.Envelope{Seq: 1})

	assert.Empty(t, s.push(realtime.Envelope{Seq: 5}))
	assert.Empty(t, s.push(realtime.Envelope{Seq: 3}))
	assert.Equal(t, []uint64{3, 4, 5}, seqs(s.push(realtime.Envelope{Seq: 4})))

	assert.Empty(t, s.push(realtime.Envelope{Seq: 8}))
	assert.Empty(t, s.push(realtime.Envelope{Seq: 7}))
	assert.Equal(t, []uint64{7, 8, 9}, seqs(s.push(realtime.Envelope{Seq: 9})))

	// Late arrivals from the skipped gap are stale now.
	assert.Empty(t, s.push(realtime.Envelope{Seq: 6}))
}

func TestSequencer_ResetStartsNewBaseline(t *testing.T) {
	s := newSequencer(4)
	s.push(realtime.Envelope{Seq: 40})
	s.push(realtime.Envelope{Seq: 42})

	assert.Equal(t, []uint64{42}, seqs(s.reset()))
	assert.Equal(t, []uint64{3}, seqs(s.push(realtime.Envelope{Seq: 3})))
}

func TestSequencer_OlderThanBaselineIsApplied(t *testing.T) {
	s := newSequencer(4)

	assert.Equal(t, []uint64{11}, seqs(s.push(realtime.Envelope{Seq: 11})))
	assert.Equal(t, []uint64{10}, seqs(s.push(realtime.Envelope{Seq: 10})))
	assert.Equal(t, []uint64{9}, seqs(s.push(realtime.Envelope{Seq: 9})))
	assert.False(t, s.waiting())

	// Each one only once, and the baseline itself stays a duplicate.
	assert.Empty(t, s.push(realtime.Envelope{Seq: 10}))
	assert.Empty(t, s.push(realtime.Envelope{Seq: 11}))
	assert.Equal(t, []uint64{12}, seqs(s.push(realtime.Envelope{Seq: 12})))
}

func TestSequencer_ResetForgetsEarlyArrivals(t *testing.T) {
	s := newSequencer(4)
	s.push(realtime.Envelope{Seq: 11})
	s.push(realtime.Envelope{Seq: 10})

	s.reset()
	assert.Equal(t, []uint64{12}, seqs(s.push(realtime.Envelope{Seq: 12})))
	assert.Equal(t, []uint64{10}, seqs(s.push(realtime.Envelope{Seq: 10})))
}
