package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/luxmed-sniper/internal/config"
	"github.com/example/luxmed-sniper/internal/db"
	"github.com/example/luxmed-sniper/internal/logging"
	"github.com/example/luxmed-sniper/internal/luxmed"
	"github.com/example/luxmed-sniper/internal/notify"
	"github.com/example/luxmed-sniper/internal/seen"
	"github.com/example/luxmed-sniper/internal/session"
	"github.com/example/luxmed-sniper/internal/watcher"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the portal indefinitely and notify about newly available slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			logging.Init(debug)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			notifier, err := notify.NewTelegram(cfg.Telegram.APIToken, cfg.Telegram.ChatID, cfg.Telegram.MessageTemplate)
			if err != nil {
				return err
			}

			w := &watcher.Watcher{
				Source:   luxmed.New(luxmed.Credentials{Email: cfg.LuxMed.Email, Password: cfg.LuxMed.Password}),
				Store:    store,
				Notifier: notifier,
				Filter:   cfg.Filter(),
				Interval: cfg.Interval(),
				Log:      logging.Component("watcher"),
			}
			if cfg.Session.Path != "" {
				w.Cache = session.NewCache(cfg.Session.Path, cfg.Session.HashKey, cfg.Session.BlockKey)
			}

			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				w.Log.Info().Msg("stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "luxmedSniper.yaml", "configuration file path")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func openStore(ctx context.Context, cfg config.Config) (seen.Store, func(), error) {
	if cfg.Store.DatabaseURL != "" {
		d, err := db.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := d.Ping(ctx); err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		return seen.NewPostgresStore(d, logging.Component("store")), d.Close, nil
	}
	return seen.NewFileStore(cfg.Store.Path, logging.Component("store")), func() {}, nil
}
