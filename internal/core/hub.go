package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/filter"
)

// Hub serializes every store mutation onto the goroutine running Run.
// Snapshot completions, push events and resolved local writes all enter through it,
// and each operation runs to completion before the next one starts.
type Hub struct {
	store      *Store
	reconciler *Reconciler
	log        *zerolog.Logger

	ops     chan *op
	stopped chan struct{}

	// generation is the newest snapshot load started; committed the newest one applied.
	generation uint64
	committed  uint64

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

type op struct {
	ctx  context.Context
	fn   func(*Store) (bool, error)
	err  error
	done chan struct{}
}

// NewHub creates a hub with an empty store. Text entering through events is passed through f.
func NewHub(f filter.Filter, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	store := NewStore()
	return &Hub{
		store:      store,
		reconciler: NewReconciler(store, f, logger),
		log:        logger,
		ops:        make(chan *op),
		stopped:    make(chan struct{}),
		subs:       make(map[*Subscription]struct{}),
	}
}

// Run processes operations until ctx is cancelled, then discards the store and closes all
// subscriptions. It must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer h.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case o := <-h.ops:
			h.exec(o)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

func (h *Hub) exec(o *op) {
	defer close(o.done)

	// The caller gave up before we got here; a disconnected source must not mutate the store.
	if err := o.ctx.Err(); err != nil {
		o.err = err
		return
	}

	changed, err := o.fn(h.store)
	o.err = err
	if changed {
		h.publish(h.store.View())
	}
}

func (h *Hub) teardown() {
	h.subsMu.Lock()
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
	h.subsMu.Unlock()

	h.store = NewStore()
	close(h.stopped)
	h.log.Debug().Msg("hub stopped")
}

// do enqueues fn and waits for it. Once accepted, an operation always runs to completion.
func (h *Hub) do(ctx context.Context, fn func(*Store) (bool, error)) error {
	o := &op{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case h.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrClosed
	}
	<-o.done
	return o.err
}

// Apply runs ev through the reconciler. It reports whether the store changed.
func (h *Hub) Apply(ctx context.Context, ev Event) (bool, error) {
	var changed bool
	err := h.do(ctx, func(*Store) (bool, error) {
		var err error
		changed, err = h.reconciler.Apply(ev)
		if err != nil {
			h.log.Error().Err(err).Str("event", ev.Kind.String()).Msg("apply event")
		}
		return changed, err
	})
	return changed, err
}

// AdoptChannel applies a locally created channel and selects it in one step.
func (h *Hub) AdoptChannel(ctx context.Context, c Channel) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		changed, err := h.reconciler.Apply(ChannelCreated(c))
		if err != nil {
			return changed, err
		}
		if s.CurrentChannelID() == c.ID {
			return changed, nil
		}
		if err := s.Select(c.ID); err != nil {
			return changed, err
		}
		return true, nil
	})
}

// Select switches the current channel. Unknown IDs return ErrInvalidSelection and change nothing.
func (h *Hub) Select(ctx context.Context, id ID) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		if s.CurrentChannelID() == id && s.HasChannel(id) {
			return false, nil
		}
		if err := s.Select(id); err != nil {
			h.log.Debug().Str("channel_id", string(id)).Msg("invalid selection")
			return false, err
		}
		return true, nil
	})
}

// BeginSnapshot marks the store as loading and returns the generation token of the new load.
func (h *Hub) BeginSnapshot(ctx context.Context) (uint64, error) {
	var gen uint64
	err := h.do(ctx, func(s *Store) (bool, error) {
		h.generation++
		gen = h.generation
		changed := s.connectionStatus != StatusLoading
		s.connectionStatus = StatusLoading
		return changed, nil
	})
	return gen, err
}

// CommitSnapshot replaces channels and messages with snap, which must already be sanitized.
// Completions older than an already committed load are discarded with ErrStaleSnapshot.
func (h *Hub) CommitSnapshot(ctx context.Context, gen uint64, snap Snapshot) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		if gen <= h.committed || gen > h.generation {
			h.log.Debug().Uint64("generation", gen).Uint64("committed", h.committed).Msg("stale snapshot discarded")
			return false, ErrStaleSnapshot
		}
		h.committed = gen

		dropped := s.replaceSnapshot(snap)
		if gen == h.generation {
			s.connectionStatus = StatusReady
			if !s.streamDown {
				s.lastError = nil
			}
		}
		s.EnsureSelection()

		h.log.Info().
			Uint64("generation", gen).
			Int("channels", len(s.channels)).
			Int("messages", len(s.messages)).
			Int("dropped", dropped).
			Msg("snapshot committed")

		if err := s.Validate(); err != nil {
			return true, fmt.Errorf("invariant violated after snapshot: %w", err)
		}
		return true, nil
	})
}

// FailSnapshot records a failed load. Channels and messages keep their last good values.
func (h *Hub) FailSnapshot(ctx context.Context, gen uint64, cause error) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		if gen != h.generation || gen <= h.committed {
			return false, ErrStaleSnapshot
		}
		s.connectionStatus = StatusError
		s.setLastError(cause)
		return true, nil
	})
}

// BeginSend marks one more submission in flight.
func (h *Hub) BeginSend(ctx context.Context) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		return s.beginSend(), nil
	})
}

// EndSend marks a submission as resolved. sendStatus returns to idle with the last one.
func (h *Hub) EndSend(ctx context.Context) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		return s.endSend(), nil
	})
}

// StreamLost records a dropped push stream: connectionStatus becomes error and cause is surfaced.
func (h *Hub) StreamLost(ctx context.Context, cause error) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		s.streamLost(cause)
		return true, nil
	})
}

// StreamRestored clears a connection error left by StreamLost. Other errors are kept.
func (h *Hub) StreamRestored(ctx context.Context) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		fallback := StatusIdle
		if h.committed > 0 {
			fallback = StatusReady
		}
		return s.streamRestored(fallback), nil
	})
}

// Report records err as the last surfaced error.
func (h *Hub) Report(ctx context.Context, err error) error {
	return h.do(ctx, func(s *Store) (bool, error) {
		s.setLastError(err)
		return true, nil
	})
}

// View returns a copy of the current state.
func (h *Hub) View(ctx context.Context) (View, error) {
	var v View
	err := h.do(ctx, func(s *Store) (bool, error) {
		v = s.View()
		return false, nil
	})
	return v, err
}

// Subscription delivers the latest View after every change. Intermediate views may be
// skipped when the reader is slow; the newest one is always kept.
type Subscription struct {
	C <-chan View

	ch   chan View
	hub  *Hub
	once sync.Once
}

// Subscribe registers an observer and primes it with the current view.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	ch := make(chan View, 1)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	err := h.do(ctx, func(s *Store) (bool, error) {
		h.subsMu.Lock()
		h.subs[sub] = struct{}{}
		h.subsMu.Unlock()
		ch <- s.View()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Release unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Release() {
	s.once.Do(func() {
		h := s.hub
		h.subsMu.Lock()
		defer h.subsMu.Unlock()
		if _, ok := h.subs[s]; ok {
			delete(h.subs, s)
			close(s.ch)
		}
	})
}

func (h *Hub) publish(v View) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- v
	}
}
