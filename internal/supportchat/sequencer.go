package supportchat

import (
	"sort"

	"github.com/richxcame/support-chat/pkg/realtime"
)

// sequencer restores per-ticket order for envelopes that carry a seq.
// The first sequenced envelope after a reset sets the baseline. Envelopes
// older than the baseline were sent before it but overtaken in flight, so
// they are applied as they arrive, once each.
type sequencer struct {
	limit   int
	base    uint64
	last    uint64
	pending map[uint64]realtime.Envelope
	early   map[uint64]struct{}
}

func newSequencer(limit int) *sequencer {
	if limit < 1 {
		limit = 1
	}
	return &sequencer{
		limit:   limit,
		pending: make(map[uint64]realtime.Envelope),
		early:   make(map[uint64]struct{}),
	}
}

// push returns the envelopes that are ready to apply, in order
func (s *sequencer) push(env realtime.Envelope) []realtime.Envelope {
	if env.Seq == 0 {
		return []realtime.Envelope{env}
	}
	if s.base == 0 {
		s.base, s.last = env.Seq, env.Seq
		return []realtime.Envelope{env}
	}
	if env.Seq < s.base {
		if _, seen := s.early[env.Seq]; seen {
			sequencerDrops.Inc()
			return nil
		}
		s.early[env.Seq] = struct{}{}
		return []realtime.Envelope{env}
	}
	if env.Seq <= s.last {
		sequencerDrops.Inc()
		return nil
	}
	if _, dup := s.pending[env.Seq]; dup {
		sequencerDrops.Inc()
		return nil
	}

	if env.Seq != s.last+1 {
		s.pending[env.Seq] = env
		if len(s.pending) > s.limit {
			return s.flush()
		}
		return nil
	}

	ready := []realtime.Envelope{env}
	s.last = env.Seq
	for {
		next, ok := s.pending[s.last+1]
		if !ok {
			break
		}
		delete(s.pending, next.Seq)
		ready = append(ready, next)
		s.last = next.Seq
	}
	return ready
}

// waiting reports whether envelopes are held behind a gap
func (s *sequencer) waiting() bool {
	return len(s.pending) > 0
}

// flush gives up on the current gap and releases everything buffered
func (s *sequencer) flush() []realtime.Envelope {
	if len(s.pending) == 0 {
		return nil
	}
	ready := make([]realtime.Envelope, 0, len(s.pending))
	for _, env := range s.pending {
		ready = append(ready, env)
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Seq < ready[j].Seq })

	s.last = ready[len(ready)-1].Seq
	s.pending = make(map[uint64]realtime.Envelope)
	sequencerGaps.Inc()
	return ready
}

// reset forgets the baseline, returning anything still buffered
func (s *sequencer) reset() []realtime.Envelope {
	ready := s.flush()
	s.base, s.last = 0, 0
	s.early = make(map[uint64]struct{})
	return ready
}
