// Package ws owns the push-event connection: connect with a credential, decode the stream,
// deliver typed events to subscribers and tear everything down deterministically.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateError is entered when connecting or reading fails. Connect may be called again.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultDialTimeout = 10 * time.Second
	defaultReadLimit   = 1 << 20
)

// EventHandler receives decoded push events in server order. ctx is cancelled on disconnect.
// Handlers run on the read goroutine and must not call Disconnect.
type EventHandler func(ctx context.Context, ev core.Event)

// StatusHandler observes state transitions. err is set for StateError.
type StatusHandler func(state State, err error)

// Manager is the push-stream connection manager. It never retries on its own.
type Manager struct {
	url         string
	dialTimeout time.Duration
	httpClient  *http.Client
	log         *zerolog.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}

	nextID   uint64
	handlers map[uint64]EventHandler
	statuses map[uint64]StatusHandler
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialTimeout bounds the handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialTimeout = d }
}

// WithHTTPClient sets the client used for the handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.httpClient = hc }
}

// NewManager builds a manager for the push endpoint at url (ws:// or wss://).
func NewManager(url string, logger *zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		url:         url,
		dialTimeout: defaultDialTimeout,
		log:         log.OrNop(logger),
		handlers:    make(map[uint64]EventHandler),
		statuses:    make(map[uint64]StatusHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscription is a scoped registration released by Release or, for event
// subscriptions, by the end of the connection.
type Subscription struct {
	once    sync.Once
	release func()
}

// Release unregisters the handler. Safe to call more than once.
func (s *Subscription) Release() {
	s.once.Do(s.release)
}

// Subscribe registers h for events of the current or next connection. Event subscriptions are
// released automatically when that connection ends, whatever the reason.
func (m *Manager) Subscribe(h EventHandler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.handlers[id] = h
	return &Subscription{release: func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}}
}

// OnStatus registers h for state transitions. It survives disconnects.
func (m *Manager) OnStatus(h StatusHandler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.statuses[id] = h
	return &Subscription{release: func() {
		m.mu.Lock()
		delete(m.statuses, id)
		m.mu.Unlock()
	}}
}

// State returns the current state and the error that caused StateError, if any.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastErr
}

// Connect opens the stream with credential. It is a no-op while connecting or connected.
// ctx bounds the handshake only; the stream lives until Disconnect or a read failure.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.lastErr = nil
	m.mu.Unlock()
	m.notify(StateConnecting, nil)

	dialCtx, cancelDial := context.WithTimeout(ctx, m.dialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, m.url, &websocket.DialOptions{
		HTTPClient: m.httpClient,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + credential}},
	})
	cancelDial()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			err = fmt.Errorf("%w: push handshake: %w", core.ErrAuth, err)
		} else {
			err = fmt.Errorf("%w: dial %s: %w", core.ErrConnection, m.url, err)
		}
		m.mu.Lock()
		stillConnecting := m.state == StateConnecting
		if stillConnecting {
			m.state = StateError
			m.lastErr = err
			clear(m.handlers)
		}
		m.mu.Unlock()
		if stillConnecting {
			m.log.Warn().Err(err).Str("url", m.url).Msg("push connect failed")
			m.notify(StateError, err)
		}
		return err
	}
	conn.SetReadLimit(defaultReadLimit)

	m.mu.Lock()
	if m.state != StateConnecting {
		// Disconnect won the race.
		m.mu.Unlock()
		_ = conn.CloseNow()
		return fmt.Errorf("%w: disconnected while connecting", core.ErrConnection)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.conn, m.cancel, m.done = conn, cancel, done
	m.state = StateConnected
	m.mu.Unlock()

	m.log.Info().Str("url", m.url).Msg("push stream connected")
	m.notify(StateConnected, nil)

	go m.readLoop(runCtx, conn, done)
	return nil
}

// Disconnect releases the transport and every event subscription. No event handler runs
// after Disconnect returns.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, cancel, done := m.conn, m.cancel, m.done
	m.conn, m.cancel, m.done = nil, nil, nil
	wasActive := m.state != StateDisconnected
	m.state = StateDisconnected
	m.lastErr = nil
	clear(m.handlers)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "disconnect"); err != nil {
			m.log.Debug().Err(err).Msg("close push stream")
		}
	}

	if wasActive {
		m.log.Info().Msg("push stream disconnected")
		m.notify(StateDisconnected, nil)
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var push proto.Push
		if err := wsjson.Read(ctx, conn, &push); err != nil {
			m.fail(done, err)
			return
		}

		ev, err := proto.DecodeEvent(push)
		if err != nil {
			m.log.Warn().Err(err).Str("event", push.Event).Msg("skip push event")
			continue
		}
		m.deliver(ctx, ev)
	}
}

func (m *Manager) deliver(ctx context.Context, ev core.Event) {
	m.mu.Lock()
	handlers := make([]EventHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		if ctx.Err() != nil {
			return
		}
		h(ctx, ev)
	}
}

// fail ends a connection that dropped on its own. A caller-initiated Disconnect has
// already detached done, in which case there is nothing to report.
func (m *Manager) fail(done chan struct{}, cause error) {
	m.mu.Lock()
	if m.done != done {
		m.mu.Unlock()
		return
	}
	conn, cancel := m.conn, m.cancel
	m.conn, m.cancel, m.done = nil, nil, nil
	clear(m.handlers)

	err := fmt.Errorf("%w: %w", core.ErrConnection, cause)
	if status := websocket.CloseStatus(cause); status != -1 {
		err = fmt.Errorf("%w: closed by server (%s)", core.ErrConnection, status)
	} else if errors.Is(cause, context.Canceled) {
		err = fmt.Errorf("%w: stream cancelled", core.ErrConnection)
	}
	m.state = StateError
	m.lastErr = err
	m.mu.Unlock()

	cancel()
	_ = conn.CloseNow()
	m.log.Warn().Err(err).Msg("push stream lost")
	m.notify(StateError, err)
}

func (m *Manager) notify(state State, err error) {
	m.mu.Lock()
	handlers := make([]StatusHandler, 0, len(m.statuses))
	for _, h := range m.statuses {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(state, err)
	}
}
