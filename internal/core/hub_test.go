package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubSnapshotSelectsFirstChannel(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	gen, err := hub.BeginSnapshot(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	v, _ := hub.View(ctx)
	if v.ConnectionStatus != StatusLoading {
		t.Fatalf("expected loading, got %s", v.ConnectionStatus)
	}

	err = hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1", Name: "general", Removable: false}}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, _ = hub.View(ctx)
	if v.CurrentChannelID != "1" || v.ConnectionStatus != StatusReady {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestHubSnapshotKeepsSelectionFromEarlierEvent(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	gen, _ := hub.BeginSnapshot(ctx)
	if _, err := hub.Apply(ctx, ChannelCreated(Channel{ID: "2", Name: "pushed"})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap := Snapshot{Channels: []Channel{{ID: "1", Name: "general"}, {ID: "2", Name: "pushed"}}}
	if err := hub.CommitSnapshot(ctx, gen, snap); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, _ := hub.View(ctx)
	if v.CurrentChannelID != "2" {
		t.Fatalf("selection set by earlier event must survive, got %q", v.CurrentChannelID)
	}
}

func TestHubDiscardsStaleSnapshot(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	older, _ := hub.BeginSnapshot(ctx)
	newer, _ := hub.BeginSnapshot(ctx)

	if err := hub.CommitSnapshot(ctx, newer, Snapshot{Channels: []Channel{{ID: "new"}}}); err != nil {
		t.Fatalf("commit newer: %v", err)
	}
	err := hub.CommitSnapshot(ctx, older, Snapshot{Channels: []Channel{{ID: "old"}}})
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
	if err := hub.FailSnapshot(ctx, older, ErrSnapshotLoad); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected stale failure to be ignored, got %v", err)
	}

	v, _ := hub.View(ctx)
	if len(v.Channels) != 1 || v.Channels[0].ID != "new" || v.ConnectionStatus != StatusReady {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestHubFailSnapshotKeepsData(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	gen, _ := hub.BeginSnapshot(ctx)
	_ = hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1"}}})

	gen, _ = hub.BeginSnapshot(ctx)
	cause := Classify(ErrSnapshotLoad, errors.New("boom"))
	if err := hub.FailSnapshot(ctx, gen, cause); err != nil {
		t.Fatalf("fail: %v", err)
	}

	v, _ := hub.View(ctx)
	if v.ConnectionStatus != StatusError {
		t.Fatalf("expected error status, got %s", v.ConnectionStatus)
	}
	if v.LastError == nil || v.LastError.Code != ErrCodeSnapshotLoad {
		t.Fatalf("unexpected last error: %+v", v.LastError)
	}
	if len(v.Channels) != 1 {
		t.Fatalf("last good data lost: %+v", v.Channels)
	}
}

func TestHubSelectUnknownReportsInvalidSelection(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	gen, _ := hub.BeginSnapshot(ctx)
	_ = hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1"}}})
	before, _ := hub.View(ctx)

	if err := hub.Select(ctx, "999"); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}

	after, _ := hub.View(ctx)
	if after.CurrentChannelID != before.CurrentChannelID || after.LastError != nil {
		t.Fatalf("store changed: %+v", after)
	}
}

func TestHubAdoptChannelSelectsIt(t *testing.T) {
	hub := newTestHub(t, censor)
	ctx := context.Background()

	gen, _ := hub.BeginSnapshot(ctx)
	_ = hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1"}}})

	if err := hub.AdoptChannel(ctx, Channel{ID: "9", Name: "bad word", Removable: true}); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	// Push echo of the same channel arrives afterwards.
	if changed, _ := hub.Apply(ctx, ChannelCreated(Channel{ID: "9", Name: "bad word"})); changed {
		t.Fatal("echo should be ignored")
	}

	v, _ := hub.View(ctx)
	if v.CurrentChannelID != "9" || len(v.Channels) != 2 || v.Channels[1].Name != "****" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestHubSubscriptionReceivesChanges(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Release()

	initial := mustView(t, sub.C, func(View) bool { return true })
	if initial.ConnectionStatus != StatusIdle {
		t.Fatalf("unexpected initial view: %+v", initial)
	}

	gen, _ := hub.BeginSnapshot(ctx)
	_ = hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1"}}})
	_, _ = hub.Apply(ctx, MessageCreated(Message{ID: "m1", ChannelID: "1", Text: "hi"}))

	mustView(t, sub.C, func(v View) bool { return len(v.Messages) == 1 })

	sub.Release()
	sub.Release()
	if _, ok := <-sub.C; ok {
		// a buffered view may still be pending; the channel must close right after.
		if _, ok := <-sub.C; ok {
			t.Fatal("subscription channel not closed after release")
		}
	}
}

func TestHubSkipsOperationsOfCancelledCallers(t *testing.T) {
	hub := newTestHub(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := hub.Apply(ctx, ChannelCreated(Channel{ID: "1"})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	v, _ := hub.View(context.Background())
	if len(v.Channels) != 0 {
		t.Fatalf("cancelled caller mutated the store: %+v", v)
	}
}

func TestHubSerializesConcurrentWriters(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	if _, err := hub.Apply(ctx, ChannelCreated(Channel{ID: "1"})); err != nil {
		t.Fatalf("apply: %v", err)
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range perWriter {
				// Every writer races the others over the same ID space.
				id := ID(string(rune('a'+i%26)) + string(rune('0'+i/26)))
				_, _ = hub.Apply(ctx, MessageCreated(Message{ID: id, ChannelID: "1", Username: string(rune('A' + w))}))
			}
		}(w)
	}
	wg.Wait()

	v, _ := hub.View(ctx)
	if len(v.Messages) != perWriter {
		t.Fatalf("expected %d unique messages, got %d", perWriter, len(v.Messages))
	}
}

func TestHubClosedAfterRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	sub, err := hub.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	if _, err := hub.View(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	for range sub.C {
	}
	sub.Release()
}

func TestHubSendStatusTracksOverlappingSends(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	for range 2 {
		if err := hub.BeginSend(ctx); err != nil {
			t.Fatalf("begin send: %v", err)
		}
	}
	if err := hub.EndSend(ctx); err != nil {
		t.Fatalf("end send: %v", err)
	}
	v, _ := hub.View(ctx)
	if v.SendStatus != SendSending {
		t.Fatalf("one send still in flight, got %s", v.SendStatus)
	}

	if err := hub.EndSend(ctx); err != nil {
		t.Fatalf("end send: %v", err)
	}
	v, _ = hub.View(ctx)
	if v.SendStatus != SendIdle {
		t.Fatalf("expected idle after last send, got %s", v.SendStatus)
	}

	// An unmatched end must not drive the counter negative.
	_ = hub.EndSend(ctx)
	_ = hub.BeginSend(ctx)
	v, _ = hub.View(ctx)
	if v.SendStatus != SendSending {
		t.Fatalf("expected sending, got %s", v.SendStatus)
	}
}

func TestHubStreamLostAndRestored(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	gen, _ := hub.BeginSnapshot(ctx)
	if err := hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1", Name: "general"}}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := hub.StreamLost(ctx, fmt.Errorf("%w: closed by server", ErrConnection)); err != nil {
		t.Fatalf("stream lost: %v", err)
	}
	v, _ := hub.View(ctx)
	if v.ConnectionStatus != StatusError || v.LastError == nil || v.LastError.Code != ErrCodeConnection {
		t.Fatalf("unexpected view during outage: %+v", v)
	}
	if len(v.Channels) != 1 {
		t.Fatalf("outage must keep data, got %d channels", len(v.Channels))
	}

	if err := hub.StreamRestored(ctx); err != nil {
		t.Fatalf("stream restored: %v", err)
	}
	v, _ = hub.View(ctx)
	if v.ConnectionStatus != StatusReady || v.LastError != nil {
		t.Fatalf("unexpected view after restore: %+v", v)
	}
}

func TestHubStreamRestoredKeepsOtherErrors(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	if err := hub.StreamLost(ctx, ErrConnection); err != nil {
		t.Fatalf("stream lost: %v", err)
	}
	gen, _ := hub.BeginSnapshot(ctx)
	if err := hub.FailSnapshot(ctx, gen, ErrSnapshotLoad); err != nil {
		t.Fatalf("fail snapshot: %v", err)
	}
	if err := hub.StreamRestored(ctx); err != nil {
		t.Fatalf("stream restored: %v", err)
	}

	v, _ := hub.View(ctx)
	if v.ConnectionStatus != StatusError || v.LastError == nil || v.LastError.Code != ErrCodeSnapshotLoad {
		t.Fatalf("snapshot failure must survive stream recovery: %+v", v)
	}
}

func TestHubSnapshotDuringOutageKeepsConnectionError(t *testing.T) {
	hub := newTestHub(t, nil)
	ctx := context.Background()

	if err := hub.StreamLost(ctx, ErrConnection); err != nil {
		t.Fatalf("stream lost: %v", err)
	}
	gen, _ := hub.BeginSnapshot(ctx)
	if err := hub.CommitSnapshot(ctx, gen, Snapshot{Channels: []Channel{{ID: "1", Name: "general"}}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, _ := hub.View(ctx)
	if v.ConnectionStatus != StatusReady {
		t.Fatalf("expected ready after commit, got %s", v.ConnectionStatus)
	}
	if v.LastError == nil || v.LastError.Code != ErrCodeConnection {
		t.Fatalf("connection error must stay visible while the stream is down: %+v", v.LastError)
	}

	_ = hub.StreamRestored(ctx)
	v, _ = hub.View(ctx)
	if v.LastError != nil {
		t.Fatalf("expected no error after restore, got %+v", v.LastError)
	}
}
