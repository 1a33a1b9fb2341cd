package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/config"
	"github.com/rshade/greenreport/internal/ingest"
	"github.com/rshade/greenreport/internal/store/postgres"
)

var errNoSink = errors.New("ingest needs database.url or an influx bucket to write to")

func newIngestCmd() *cobra.Command {
	var (
		brokers []string
		topic   string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume sensor readings from Kafka into the configured stores",
		Long: `Consume JSON sensor messages from Kafka and write them to PostgreSQL,
InfluxDB or both. Offsets are committed only after a batch is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.GetGlobalConfig()
			kafkaCfg := ingest.Config{
				Brokers:       cfg.Kafka.Brokers,
				Topic:         cfg.Kafka.Topic,
				GroupID:       cfg.Kafka.GroupID,
				BatchSize:     cfg.Kafka.BatchSize,
				FlushInterval: cfg.Kafka.FlushInterval,
			}
			if len(brokers) > 0 {
				kafkaCfg.Brokers = brokers
			}
			if topic != "" {
				kafkaCfg.Topic = topic
			}

			writer, closeAll, err := openSinks(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			consumer, err := ingest.NewConsumer(kafkaCfg, writer)
			if err != nil {
				return err
			}
			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				logger.Info().Ctx(ctx).Msg("ingest stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "kafka brokers (default kafka.brokers)")
	cmd.Flags().StringVar(&topic, "topic", "", "kafka topic (default kafka.topic)")
	return cmd
}

// openSinks returns a writer over every configured store.
func openSinks(ctx context.Context, cfg *config.Config) (ingest.ReadingWriter, func(), error) {
	var (
		sinks   ingest.MultiWriter
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, postgres.Config{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		closers = append(closers, db.Close)
		if err = db.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, db)
	}
	if cfg.Influx.Enabled() {
		store, err := openInflux(cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		sinks = append(sinks, store)
	}

	switch len(sinks) {
	case 0:
		return nil, nil, errNoSink
	case 1:
		return sinks[0], closeAll, nil
	default:
		return sinks, closeAll, nil
	}
}
