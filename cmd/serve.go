package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokgrab/internal/bot"
	"tokgrab/internal/broadcast"
	"tokgrab/internal/gateway"
	"tokgrab/internal/metrics"
	"tokgrab/internal/resolver"
	"tokgrab/internal/session"
	"tokgrab/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func serveRun(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireBot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	res, err := buildResolver(cfg, logger, resolver.WithObserver(m))
	if err != nil {
		return err
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, dbPath, cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer st.Close()
	logger.Info().Str("path", dbPath).Msg("registry opened")

	tg, err := gateway.NewTelegram(gateway.TelegramOptions{Token: cfg.Token, Logger: logger})
	if err != nil {
		return err
	}

	bc := broadcast.New(tg, broadcast.Options{
		Rate:     cfg.Broadcast.Rate,
		Burst:    cfg.Broadcast.Burst,
		Recorder: m,
		Logger:   logger,
	})
	sessions := session.NewStore(cfg.SessionTTL)

	b := bot.New(tg, st, res, bc, sessions, bot.Options{
		Caption:       cfg.Caption,
		MaxConcurrent: cfg.MaxConcurrent,
		Tracker:       m,
		Logger:        logger,
	})

	metricsDone := make(chan error, 1)
	if cfg.Metrics.Addr != "" {
		go func() {
			err := m.Serve(ctx, cfg.Metrics.Addr, logger)
			if err != nil {
				logger.Error().Err(err).Msg("metrics listener failed, shutting down")
				stop()
			}
			metricsDone <- err
		}()
	} else {
		metricsDone <- nil
	}

	runErr := b.Run(ctx)
	stop()
	metricsErr := <-metricsDone

	if runErr != nil {
		return runErr
	}
	return metricsErr
}
