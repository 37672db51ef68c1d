package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planthub/authapi/config"
	"github.com/planthub/authapi/internal/events"
	"github.com/planthub/authapi/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the auth event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every auth event published on the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("EVENTS_BACKEND is none; nothing to tail")
		}
		defer broker.Close()

		logger.Info("tailing auth events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
		err = broker.Subscribe(ctx, cfg.Events.Channel, func(ctx context.Context, msg mq.Message) error {
			var e events.Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				logger.WarnContext(ctx, "undecodable event", "id", msg.ID, "error", err)
				return nil
			}
			logger.InfoContext(ctx, string(e.Type),
				"user_id", e.UserID,
				"actor_id", e.ActorID,
				"request_id", e.RequestID,
				"occurred_at", e.OccurredAt,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
