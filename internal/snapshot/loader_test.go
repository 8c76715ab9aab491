package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/filter"
)

type fakeFetcher struct {
	channels    []core.Channel
	messages    []core.Message
	channelsErr error
	messagesErr error
	delay       time.Duration
	gate        chan struct{}

	channelCalls atomic.Int32
	messageCalls atomic.Int32
}

func (f *fakeFetcher) ListChannels(ctx context.Context) ([]core.Channel, error) {
	f.channelCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return append([]core.Channel(nil), f.channels...), f.channelsErr
}

func (f *fakeFetcher) ListMessages(ctx context.Context) ([]core.Message, error) {
	f.messageCalls.Add(1)
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return append([]core.Message(nil), f.messages...), nil
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestLoadSanitizesBothCollections(t *testing.T) {
	f := &fakeFetcher{
		channels: []core.Channel{{ID: "1", Name: "darn channel"}},
		messages: []core.Message{{ID: "m1", ChannelID: "1", Text: "oh darn"}},
	}
	l := NewLoader(f, filter.NewWithDictionary("darn"), nil)

	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Channels[0].Name != "**** channel" || snap.Messages[0].Text != "oh ****" {
		t.Fatalf("snapshot not sanitized: %+v", snap)
	}
	if f.channelCalls.Load() != 1 || f.messageCalls.Load() != 1 {
		t.Fatalf("unexpected call counts: %d/%d", f.channelCalls.Load(), f.messageCalls.Load())
	}
}

func TestLoadFailsWholeOnEitherFetch(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		want    error
	}{
		{
			name:    "channels fail",
			fetcher: &fakeFetcher{channelsErr: boom, messages: []core.Message{{ID: "m1"}}},
			want:    core.ErrSnapshotLoad,
		},
		{
			name:    "messages fail",
			fetcher: &fakeFetcher{channels: []core.Channel{{ID: "1"}}, messagesErr: boom, delay: 50 * time.Millisecond},
			want:    core.ErrSnapshotLoad,
		},
		{
			name:    "unauthorized wins",
			fetcher: &fakeFetcher{messagesErr: fmt.Errorf("%w: GET /messages", core.ErrAuth)},
			want:    core.ErrAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(tt.fetcher, nil, nil)
			snap, err := l.Load(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(snap.Channels) != 0 || len(snap.Messages) != 0 {
				t.Fatalf("partial snapshot returned: %+v", snap)
			}
		})
	}
}

func TestLoadSharesInFlightCall(t *testing.T) {
	f := &fakeFetcher{
		channels: []core.Channel{{ID: "1"}},
		gate:     make(chan struct{}),
	}
	l := NewLoader(f, nil, nil)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background())
			errs <- err
		}()
	}

	// Let every caller reach the singleflight group before releasing the fetch.
	deadline := time.Now().Add(time.Second)
	for f.channelCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if n := f.channelCalls.Load(); n != 1 {
		t.Fatalf("expected a single fetch, got %d", n)
	}
}

func TestLoadHonoursCallerContext(t *testing.T) {
	f := &fakeFetcher{delay: time.Second}
	l := NewLoader(f, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Load(ctx)
	if !errors.Is(err, core.ErrSnapshotLoad) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected classified deadline error, got %v", err)
	}
}
