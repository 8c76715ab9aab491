package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/filter"
)

func newTestHub(t *testing.T, f filter.Filter) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(f, nil)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

func mustView(t *testing.T, ch <-chan View, pred func(View) bool) View {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed")
			}
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("expected view not received")
		}
	}
}

func mustValid(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func seededStore(t *testing.T, channels []Channel, messages []Message) *Store {
	t.Helper()
	s := NewStore()
	s.replaceSnapshot(Snapshot{Channels: channels, Messages: messages})
	s.EnsureSelection()
	mustValid(t, s)
	return s
}

var censor = filter.Func(func(s string) string {
	if s == "bad word" {
		return "****"
	}
	return s
})
