package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/filter"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/snapshot"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

// ErrLoggedOut is returned by Run after the credential was rejected.
var ErrLoggedOut = errors.New("logged out")

// Session wires the store, the snapshot loader, the push stream and the REST client into one
// synchronized chat client.
type Session struct {
	cfg    config.Config
	log    *zerolog.Logger
	filter filter.Filter
	creds  CredentialStore

	hub    *core.Hub
	api    *api.Client
	loader snapshotLoader
	conn   *ws.Manager

	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	statusSub *ws.Subscription

	lost       chan error
	logout     chan struct{}
	logoutOnce sync.Once
	closeOnce  sync.Once
}

type snapshotLoader interface {
	Load(ctx context.Context) (core.Snapshot, error)
}

// SessionOption customizes a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	creds      CredentialStore
	filter     filter.Filter
	httpClient *http.Client
}

// WithCredentialStore replaces the in-memory credential store seeded from the config.
func WithCredentialStore(cs CredentialStore) SessionOption {
	return func(o *sessionOptions) { o.creds = cs }
}

// WithFilter replaces the default word filter.
func WithFilter(f filter.Filter) SessionOption {
	return func(o *sessionOptions) { o.filter = f }
}

// WithHTTPClient sets the client used for REST calls and the push handshake.
func WithHTTPClient(hc *http.Client) SessionOption {
	return func(o *sessionOptions) { o.httpClient = hc }
}

// NewSession builds a session from cfg. Nothing runs until Start.
func NewSession(cfg config.Config, logger *zerolog.Logger, opts ...SessionOption) (*Session, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("api_url is required")
	}
	if cfg.WSURL == "" {
		return nil, errors.New("ws_url is required")
	}
	logger = log.OrNop(logger)

	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.creds == nil {
		o.creds = NewMemoryCredentials(cfg.Username, cfg.Token)
	}
	if o.filter == nil {
		o.filter = filter.New(cfg.Filter.ExtraWords...)
	}

	apiOpts := []api.Option{api.WithLogger(logger)}
	wsOpts := []ws.Option{}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
		wsOpts = append(wsOpts, ws.WithHTTPClient(o.httpClient))
	}
	if cfg.RequestTimeout > 0 {
		wsOpts = append(wsOpts, ws.WithDialTimeout(cfg.RequestTimeout))
	}

	client := api.New(cfg.APIURL, cfg.RequestTimeout, apiOpts...)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		cfg:    cfg,
		log:    logger,
		filter: o.filter,
		creds:  o.creds,
		hub:    core.NewHub(o.filter, logger),
		api:    client,
		loader: snapshot.NewLoader(client, o.filter, logger),
		conn:   ws.NewManager(cfg.WSURL, logger, wsOpts...),
		ctx:    ctx,
		cancel: cancel,
		lost:   make(chan error, 1),
		logout: make(chan struct{}),
	}
	s.statusSub = s.conn.OnStatus(s.onStatus)
	return s, nil
}

// Authenticate logs in, or signs up when signup is set, and stores the issued token.
func (s *Session) Authenticate(ctx context.Context, username, password string, signup bool) (string, error) {
	call := s.api.Login
	if signup {
		call = s.api.Signup
	}
	resp, err := call(ctx, username, password)
	if err != nil {
		return "", err
	}
	name := resp.Username
	if name == "" {
		name = username
	}
	if err := s.creds.Save(name, resp.Token); err != nil {
		return "", fmt.Errorf("save credentials: %w", err)
	}
	s.log.Info().Str("username", name).Bool("signup", signup).Msg("authenticated")
	return resp.Token, nil
}

// Start runs the store, opens the push stream and loads the snapshot. An empty credential
// falls back to the credential store. A push connection failure is reported and left to Run;
// snapshot and auth failures are returned.
func (s *Session) Start(ctx context.Context, credential string) error {
	if credential == "" {
		_, credential = s.creds.Load()
	}
	if credential == "" {
		return fmt.Errorf("%w: no credential", core.ErrAuth)
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}
	s.api.SetToken(credential)

	go s.hub.Run(s.ctx)

	if err := s.connect(ctx); err != nil && errors.Is(err, core.ErrAuth) {
		return err
	}
	return s.Reload(ctx)
}

// Run blocks until ctx is cancelled or the credential is rejected, reconnecting the push
// stream according to the reconnect settings. The session is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.logout:
			return ErrLoggedOut
		case err := <-s.lost:
			if st, _ := s.conn.State(); st == ws.StateConnected || st == ws.StateConnecting {
				continue
			}
			if !s.cfg.Reconnect.Enabled {
				return err
			}
			if err := s.reconnect(ctx); err != nil {
				if errors.Is(err, core.ErrAuth) {
					return ErrLoggedOut
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) reconnect(ctx context.Context) error {
	delay := s.cfg.Reconnect.Backoff
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := s.cfg.Reconnect.MaxBackoff
	if maxDelay < delay {
		maxDelay = delay
	}

	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.logout:
			timer.Stop()
			return ErrLoggedOut
		case <-timer.C:
		}

		s.log.Info().Int("attempt", attempt).Msg("reconnecting push stream")
		err := s.connect(ctx)
		if err == nil {
			// The failed attempts queued their own loss notifications.
			select {
			case <-s.lost:
			default:
			}
			if s.cfg.Reconnect.Resync {
				if err := s.Reload(ctx); err != nil {
					s.log.Warn().Err(err).Msg("resync after reconnect failed")
				}
			}
			return nil
		}
		if errors.Is(err, core.ErrAuth) {
			return err
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (s *Session) connect(ctx context.Context) error {
	if st, _ := s.conn.State(); st == ws.StateConnected {
		return nil
	}
	_, token := s.creds.Load()
	if token == "" {
		token = s.api.Token()
	}
	s.conn.Subscribe(s.onEvent)
	return s.conn.Connect(ctx, token)
}

func (s *Session) onEvent(ctx context.Context, ev core.Event) {
	if _, err := s.hub.Apply(ctx, ev); err != nil && ctx.Err() == nil && !errors.Is(err, core.ErrClosed) {
		s.log.Error().Err(err).Str("event", ev.Kind.String()).Msg("push event rejected")
	}
}

func (s *Session) onStatus(state ws.State, err error) {
	s.log.Debug().Str("status", state.String()).Msg("push stream state")
	switch state {
	case ws.StateConnected:
		s.storeOp("stream restored", s.hub.StreamRestored)
	case ws.StateError:
		if errors.Is(err, core.ErrAuth) {
			s.signalLogout(err)
			return
		}
		s.storeOp("stream lost", func(ctx context.Context) error {
			return s.hub.StreamLost(ctx, err)
		})
		select {
		case s.lost <- err:
		default:
		}
	}
}

// Reload fetches a fresh snapshot. Completions superseded by a newer reload are discarded.
func (s *Session) Reload(ctx context.Context) error {
	gen, err := s.hub.BeginSnapshot(ctx)
	if err != nil {
		return err
	}

	snap, err := s.loader.Load(ctx)
	if err != nil {
		if ferr := s.hub.FailSnapshot(context.WithoutCancel(ctx), gen, err); ferr != nil && !errors.Is(ferr, core.ErrStaleSnapshot) {
			s.log.Warn().Err(ferr).Msg("record snapshot failure")
		}
		if errors.Is(err, core.ErrAuth) {
			s.signalLogout(err)
		}
		return err
	}

	if err := s.hub.CommitSnapshot(context.WithoutCancel(ctx), gen, snap); err != nil && !errors.Is(err, core.ErrStaleSnapshot) {
		return err
	}
	return nil
}

// SendMessage posts text to channelID. The store only changes once the server accepted it.
func (s *Session) SendMessage(ctx context.Context, channelID core.ID, text string) (core.Message, error) {
	if strings.TrimSpace(text) == "" {
		return core.Message{}, fmt.Errorf("%w: empty message", core.ErrSubmission)
	}
	if err := s.hub.BeginSend(ctx); err != nil {
		return core.Message{}, err
	}
	defer func() {
		if err := s.hub.EndSend(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, core.ErrClosed) {
			s.log.Warn().Err(err).Msg("reset send status")
		}
	}()

	msg, err := s.api.SendMessage(ctx, channelID, text)
	if err != nil {
		return core.Message{}, s.submissionFailed(ctx, "send message", err)
	}
	if _, err := s.hub.Apply(ctx, core.MessageCreated(msg)); err != nil {
		return msg, err
	}
	return msg, nil
}

// CreateChannel creates a channel named name after sanitizing it, then selects it.
func (s *Session) CreateChannel(ctx context.Context, name string) (core.Channel, error) {
	name = s.cleanName(name)
	if name == "" {
		return core.Channel{}, fmt.Errorf("%w: empty channel name", core.ErrSubmission)
	}

	ch, err := s.api.CreateChannel(ctx, name)
	if err != nil {
		return core.Channel{}, s.submissionFailed(ctx, "create channel", err)
	}
	if err := s.hub.AdoptChannel(ctx, ch); err != nil {
		return ch, err
	}
	return ch, nil
}

// RenameChannel renames id after sanitizing name.
func (s *Session) RenameChannel(ctx context.Context, id core.ID, name string) (core.Channel, error) {
	name = s.cleanName(name)
	if name == "" {
		return core.Channel{}, fmt.Errorf("%w: empty channel name", core.ErrSubmission)
	}

	ch, err := s.api.RenameChannel(ctx, id, name)
	if err != nil {
		return core.Channel{}, s.submissionFailed(ctx, "rename channel", err)
	}
	if _, err := s.hub.Apply(ctx, core.ChannelRenamed(ch)); err != nil {
		return ch, err
	}
	return ch, nil
}

// cleanName trims and sanitizes a channel name before it leaves the client.
func (s *Session) cleanName(name string) string {
	name = strings.TrimSpace(name)
	if filter.Check(s.filter, name) {
		s.log.Info().Msg("channel name masked by content filter")
	}
	return s.filter.Sanitize(name)
}

// RemoveChannel deletes id and its messages.
func (s *Session) RemoveChannel(ctx context.Context, id core.ID) error {
	if err := s.api.RemoveChannel(ctx, id); err != nil {
		return s.submissionFailed(ctx, "remove channel", err)
	}
	_, err := s.hub.Apply(ctx, core.ChannelRemoved(id))
	return err
}

func (s *Session) submissionFailed(ctx context.Context, op string, cause error) error {
	err := core.Classify(core.ErrSubmission, fmt.Errorf("%s: %w", op, cause))
	s.log.Warn().Err(err).Str("op", op).Msg("submission failed")
	s.report(err)
	if errors.Is(err, core.ErrAuth) {
		s.signalLogout(err)
	}
	return err
}

// Select switches the current channel. Unknown IDs fail with core.ErrInvalidSelection.
func (s *Session) Select(ctx context.Context, id core.ID) error {
	return s.hub.Select(ctx, id)
}

// View returns a copy of the current state.
func (s *Session) View(ctx context.Context) (core.View, error) {
	return s.hub.View(ctx)
}

// Subscribe observes state changes until the subscription is released or the session closes.
func (s *Session) Subscribe(ctx context.Context) (*core.Subscription, error) {
	return s.hub.Subscribe(ctx)
}

// Logout is closed once the server rejects the credential.
func (s *Session) Logout() <-chan struct{} {
	return s.logout
}

// Username returns the name the credential belongs to, if known.
func (s *Session) Username() string {
	name, _ := s.creds.Load()
	return name
}

func (s *Session) signalLogout(cause error) {
	s.logoutOnce.Do(func() {
		s.log.Warn().Err(cause).Msg("credential rejected, logging out")
		s.report(cause)
		if err := s.creds.Clear(); err != nil {
			s.log.Warn().Err(err).Msg("clear credentials")
		}
		s.api.SetToken("")
		close(s.logout)
	})
}

func (s *Session) report(err error) {
	s.storeOp("report error", func(ctx context.Context) error {
		return s.hub.Report(ctx, err)
	})
}

// storeOp runs a hub operation on the session context once the hub is running.
func (s *Session) storeOp(what string, fn func(context.Context) error) {
	if !s.started.Load() {
		return
	}
	if err := fn(s.ctx); err != nil && !errors.Is(err, core.ErrClosed) && s.ctx.Err() == nil {
		s.log.Debug().Err(err).Msg(what)
	}
}

// Close disconnects the push stream and stops the store. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Disconnect()
		s.statusSub.Release()
		s.cancel()
		if s.started.Load() {
			<-s.hub.Done()
		}
		s.log.Info().Msg("session closed")
	})
}
