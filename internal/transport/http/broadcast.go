package http

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/utils"
)

const defaultSubscriberBuffer = 64

// subscriber is one connected push socket.
type subscriber struct {
	ID       string
	Username string
	Events   chan proto.Push
}

// Broadcaster fans push envelopes out to every connected socket.
// A subscriber whose buffer is full is disconnected rather than blocking the publisher;
// the client recovers by reconnecting and reloading its snapshot.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	log    *zerolog.Logger
}

// NewBroadcaster creates a broadcaster. buffer <= 0 selects the default.
func NewBroadcaster(buffer int, logger *zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		log:    logger,
	}
}

func (b *Broadcaster) subscribe(username string) *subscriber {
	sub := &subscriber{
		ID:       utils.NewID(),
		Username: username,
		Events:   make(chan proto.Push, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// unsubscribe removes sub and closes its channel. Returns true if it was still registered.
func (b *Broadcaster) unsubscribe(sub *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return false
	}
	delete(b.subs, sub)
	close(sub.Events)
	return true
}

// Publish sends event to every subscriber.
func (b *Broadcaster) Publish(event string, data any) {
	push, err := proto.NewPush(event, data)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("encode push")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.Events <- push:
		default:
			delete(b.subs, sub)
			close(sub.Events)
			b.log.Warn().Str("client_id", sub.ID).Str("username", sub.Username).Msg("dropping slow push subscriber")
		}
	}
}

// Len returns the number of connected subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
