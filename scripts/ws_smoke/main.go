package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

// run logs in, opens the push stream, posts one message and waits for its echo.
func run() error {
	apiURL := flag.String("api", "http://localhost:5001/api/v1", "REST base URL")
	wsURL := flag.String("ws", "ws://localhost:5001/ws", "push stream URL")
	user := flag.String("user", "smoke", "username")
	pass := flag.String("pass", "smoke-pass", "password")
	signup := flag.Bool("signup", false, "create the account first")
	channel := flag.String("channel", "general", "channel name to post to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	logger := log.NewWithWriter(os.Stderr, "debug")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := api.New(*apiURL, *timeout, api.WithLogger(logger))
	if *signup {
		if _, err := client.Signup(ctx, *user, *pass); err != nil && !api.IsStatus(err, 409) {
			return fmt.Errorf("signup: %w", err)
		}
	}
	auth, err := client.Login(ctx, *user, *pass)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	channels, err := client.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	var target core.ID
	for _, ch := range channels {
		if ch.Name == *channel {
			target = ch.ID
		}
	}
	if target == "" {
		return fmt.Errorf("channel %q not found", *channel)
	}

	echo := make(chan core.Message, 1)
	conn := ws.NewManager(*wsURL, logger)
	conn.Subscribe(func(_ context.Context, ev core.Event) {
		fmt.Printf("received %s\n", ev.Kind)
		if ev.Kind == core.EventMessageCreated && ev.Message.Text == *text {
			select {
			case echo <- ev.Message:
			default:
			}
		}
	})
	if err := conn.Connect(ctx, auth.Token); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Disconnect()

	sent, err := client.SendMessage(ctx, target, *text)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	select {
	case m := <-echo:
		if m.ID != sent.ID {
			return errors.New("echo carries a different message id")
		}
		fmt.Printf("ok: message %s echoed on #%s\n", m.ID, *channel)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no echo before timeout: %w", ctx.Err())
	}
}
