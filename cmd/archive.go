/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/internal/mq"
	"github.com/adminpanel/apiserver/internal/storage"
	"github.com/adminpanel/apiserver/types"
	"github.com/spf13/cobra"
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copies account events from the broker into object storage",
	Long: `Consumes the account events channel and writes every event to the
configured object storage bucket until interrupted. Usage:

	MQ_BACKEND=rabbitmq STORAGE_BACKEND=minio adminpanel archive
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg).With("component", "archiver")
		ctx := cmd.Context()

		backend, err := mq.Open(ctx, cfg.Events)
		if errors.Is(err, mq.ErrDisabled) {
			return errors.New("MQ_BACKEND must be rabbitmq or pubsub")
		}
		if err != nil {
			return fmt.Errorf("open events backend: %w", err)
		}
		bus, err := mq.NewEventBus(backend, cfg.Events.Channel, logger)
		if err != nil {
			_ = backend.Close()
			return err
		}
		defer bus.Close()

		objects, err := storage.Open(ctx, cfg.Archive)
		if errors.Is(err, storage.ErrDisabled) {
			return errors.New("STORAGE_BACKEND must be minio or gcs")
		}
		if err != nil {
			return fmt.Errorf("open storage backend: %w", err)
		}
		archiver := storage.NewArchiver(objects, cfg.Archive.Prefix, logger)
		if err := archiver.Prepare(ctx); err != nil {
			return err
		}

		logger.Info(ctx, "archiving account events", "channel", cfg.Events.Channel, "bucket", objects.Bucket())
		err = bus.SubscribeEvents(ctx, func(ctx context.Context, event types.AccountEvent) error {
			if err := archiver.Archive(ctx, event); err != nil {
				logger.Error(ctx, "archive event failed", "event_id", event.ID, "error", err)
				return err
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
