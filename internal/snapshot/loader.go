// Package snapshot fetches the initial channel and message collections.
package snapshot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/filter"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

// Fetcher lists the two collections a snapshot is built from.
type Fetcher interface {
	ListChannels(ctx context.Context) ([]core.Channel, error)
	ListMessages(ctx context.Context) ([]core.Message, error)
}

// Loader fetches both collections concurrently and sanitizes them.
// Concurrent Load calls share one in-flight fetch.
type Loader struct {
	fetcher Fetcher
	filter  filter.Filter
	log     *zerolog.Logger
	group   singleflight.Group
}

// NewLoader builds a loader. A nil filter stores text verbatim.
func NewLoader(fetcher Fetcher, f filter.Filter, logger *zerolog.Logger) *Loader {
	if f == nil {
		f = filter.Identity
	}
	return &Loader{fetcher: fetcher, filter: f, log: log.OrNop(logger)}
}

// Load returns a complete snapshot or an error; never a partial one. Failures are classified as
// core.ErrSnapshotLoad unless the server rejected the credential (core.ErrAuth).
func (l *Loader) Load(ctx context.Context) (core.Snapshot, error) {
	ch := l.group.DoChan("snapshot", func() (any, error) {
		return l.load(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.Snapshot{}, res.Err
		}
		if res.Shared {
			l.log.Debug().Msg("joined in-flight snapshot load")
		}
		return res.Val.(core.Snapshot), nil
	case <-ctx.Done():
		return core.Snapshot{}, core.Classify(core.ErrSnapshotLoad, ctx.Err())
	}
}

func (l *Loader) load(ctx context.Context) (core.Snapshot, error) {
	var (
		channels []core.Channel
		messages []core.Message
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = l.fetcher.ListChannels(gctx)
		if err != nil {
			return fmt.Errorf("fetch channels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		messages, err = l.fetcher.ListMessages(gctx)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		l.log.Warn().Err(err).Msg("snapshot load failed")
		return core.Snapshot{}, core.Classify(core.ErrSnapshotLoad, err)
	}

	for i := range channels {
		channels[i].Name = l.filter.Sanitize(channels[i].Name)
	}
	for i := range messages {
		messages[i].Text = l.filter.Sanitize(messages[i].Text)
	}

	l.log.Debug().Int("channels", len(channels)).Int("messages", len(messages)).Msg("snapshot fetched")
	return core.Snapshot{Channels: channels, Messages: messages}, nil
}
