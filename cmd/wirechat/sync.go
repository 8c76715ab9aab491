package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/core"
)

func newSyncCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Connect, load the snapshot and stream changes until interrupted",
		Long: `Connect to the chat server, load channels and messages, and keep them in sync.

Without a configured token the command logs in with --username and --password
(or WIRECHAT_PASSWORD), creating the account first when --signup is given.

Examples:
  wirechat sync --username alice --signup
  wirechat sync --channel random --send "hello"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, rt)
		},
	}

	cmd.Flags().String("username", "", "username for login (overrides config)")
	cmd.Flags().String("password", "", "password for login; WIRECHAT_PASSWORD is used when empty")
	cmd.Flags().Bool("signup", false, "create the account before logging in")
	cmd.Flags().String("channel", "", "select this channel by name after loading")
	cmd.Flags().String("send", "", "post one message to the selected channel")
	return cmd
}

func runSync(cmd *cobra.Command, rt *runtime) error {
	cfg := rt.cfg
	if username, _ := cmd.Flags().GetString("username"); username != "" {
		cfg.Username = username
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := app.NewFileCredentials(rt.configPath, cfg.Username, cfg.Token)
	sess, err := app.NewSession(cfg, rt.logger, app.WithCredentialStore(creds))
	if err != nil {
		return err
	}
	defer sess.Close()

	if cfg.Token == "" {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("WIRECHAT_PASSWORD")
		}
		if cfg.Username == "" || password == "" {
			return errors.New("no token configured: pass --username and --password")
		}
		signup, _ := cmd.Flags().GetBool("signup")
		if _, err := sess.Authenticate(ctx, cfg.Username, password, signup); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	if err := sess.Start(ctx, cfg.Token); err != nil {
		if errors.Is(err, core.ErrAuth) {
			return err
		}
		rt.logger.Warn().Err(err).Msg("initial load incomplete, continuing")
	}

	if name, _ := cmd.Flags().GetString("channel"); name != "" {
		if err := selectByName(ctx, sess, name); err != nil {
			return err
		}
	}

	sub, err := sess.Subscribe(ctx)
	if err != nil {
		return err
	}
	go render(cmd.OutOrStdout(), sub)

	if text, _ := cmd.Flags().GetString("send"); text != "" {
		v, err := sess.View(ctx)
		if err != nil {
			return err
		}
		if _, err := sess.SendMessage(ctx, v.CurrentChannelID, text); err != nil {
			return err
		}
	}

	err = sess.Run(ctx)
	if errors.Is(err, app.ErrLoggedOut) {
		return errors.New("credential rejected by the server, log in again")
	}
	return err
}

func selectByName(ctx context.Context, sess *app.Session, name string) error {
	v, err := sess.View(ctx)
	if err != nil {
		return err
	}
	for _, ch := range v.Channels {
		if ch.Name == name {
			return sess.Select(ctx, ch.ID)
		}
	}
	return fmt.Errorf("%w: no channel named %q", core.ErrInvalidSelection, name)
}

// render prints every message the first time it shows up and notes channel switches.
func render(out io.Writer, sub *core.Subscription) {
	seen := make(map[core.ID]struct{})
	var current core.ID
	var lastErr string

	for v := range sub.C {
		if v.CurrentChannelID != current {
			current = v.CurrentChannelID
			if ch, ok := v.Channel(current); ok {
				fmt.Fprintf(out, "-- now in #%s\n", ch.Name)
			}
		}
		for _, m := range v.Messages {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			name := string(m.ChannelID)
			if ch, ok := v.Channel(m.ChannelID); ok {
				name = ch.Name
			}
			fmt.Fprintf(out, "[#%s] %s: %s\n", name, m.Username, m.Text)
		}
		if v.LastError != nil && v.LastError.Message != lastErr {
			lastErr = v.LastError.Message
			fmt.Fprintf(out, "!! %s (%s)\n", v.LastError.Message, v.LastError.Code)
		}
	}
}
