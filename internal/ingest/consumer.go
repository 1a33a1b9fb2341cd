// Package ingest consumes sensor messages from Kafka and persists them as
// readings for the report pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/metrics"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
	defaultPollTimeout   = time.Second
	finalFlushTimeout    = 10 * time.Second
)

// ReadingWriter persists a batch of readings.
type ReadingWriter interface {
	WriteReadings(ctx context.Context, readings []carbon.Reading) error
}

// Fetcher is the subset of *kafka.Reader the consumer drives.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config controls the Kafka reader and the flush policy.
type Config struct {
	Brokers       []string
	Topic         string
	GroupID       string
	BatchSize     int
	FlushInterval time.Duration
	PollTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	return c
}

// Consumer buffers decoded readings and flushes them by size or age.
// Offsets are committed only after the batch holding them was written.
type Consumer struct {
	fetcher Fetcher
	writer  ReadingWriter
	cfg     Config
	now     func() time.Time

	pending   []carbon.Reading
	messages  []kafka.Message
	lastFlush time.Time
}

// NewConsumer opens a consumer-group reader on the configured topic.
func NewConsumer(cfg Config, writer ReadingWriter) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("ingest: no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("ingest: no kafka topic configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewConsumerWithFetcher(reader, writer, cfg)
}

// NewConsumerWithFetcher builds a consumer around an existing fetcher.
func NewConsumerWithFetcher(fetcher Fetcher, writer ReadingWriter, cfg Config) (*Consumer, error) {
	if fetcher == nil {
		return nil, errors.New("ingest: fetcher is required")
	}
	if writer == nil {
		return nil, errors.New("ingest: reading writer is required")
	}
	return &Consumer{
		fetcher: fetcher,
		writer:  writer,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}, nil
}

// Run consumes until ctx is cancelled or the reader closes. Buffered
// readings are flushed before returning.
func (c *Consumer) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info().Ctx(ctx).Str("component", "ingest").
		Str("topic", c.cfg.Topic).
		Int("batch_size", c.cfg.BatchSize).
		Dur("flush_interval", c.cfg.FlushInterval).
		Msg("sensor consumer started")

	c.lastFlush = c.now()
	defer func() {
		if err := c.fetcher.Close(); err != nil {
			log.Warn().Ctx(ctx).Str("component", "ingest").Err(err).Msg("closing kafka reader")
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			c.finalFlush(ctx)
			return err
		}

		pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.fetcher.FetchMessage(pollCtx)
		cancel()

		switch {
		case err == nil:
			c.accept(ctx, msg)
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// Poll timed out; fall through to the age check.
		case errors.Is(err, kafka.ErrGroupClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
			c.finalFlush(ctx)
			return nil
		case ctx.Err() != nil:
			c.finalFlush(ctx)
			return ctx.Err()
		default:
			return fmt.Errorf("fetching sensor message: %w", err)
		}

		if c.due() {
			if err := c.Flush(ctx); err != nil {
				log.Error().Ctx(ctx).Str("component", "ingest").Err(err).
					Int("buffered", c.buffered()).Msg("flush failed; batch kept for retry")
				c.lastFlush = c.now()
			}
		}
	}
}

func (c *Consumer) accept(ctx context.Context, msg kafka.Message) {
	c.messages = append(c.messages, msg)
	reading, err := DecodeReading(msg.Value)
	if err != nil {
		metrics.IngestMessages.WithLabelValues(metrics.IngestRejected).Inc()
		logging.FromContext(ctx).Debug().Ctx(ctx).Str("component", "ingest").
			Int64("offset", msg.Offset).Int("partition", msg.Partition).
			Err(err).Msg("sensor message rejected")
		return
	}
	metrics.IngestMessages.WithLabelValues(metrics.IngestAccepted).Inc()
	c.pending = append(c.pending, reading)
}

func (c *Consumer) due() bool {
	if len(c.messages) == 0 {
		return false
	}
	return c.buffered() >= c.cfg.BatchSize || c.now().Sub(c.lastFlush) >= c.cfg.FlushInterval
}

// Flush writes buffered readings and commits the offsets they came from.
// On a write error nothing is committed and the buffer is kept.
func (c *Consumer) Flush(ctx context.Context) error {
	if len(c.messages) == 0 {
		return nil
	}
	start := c.now()
	if len(c.pending) > 0 {
		if err := c.writer.WriteReadings(ctx, c.pending); err != nil {
			return fmt.Errorf("writing %d readings: %w", len(c.pending), err)
		}
	}
	if err := c.fetcher.CommitMessages(ctx, c.messages...); err != nil {
		return fmt.Errorf("committing offsets: %w", err)
	}

	metrics.IngestFlushedReadings.Add(float64(len(c.pending)))
	metrics.IngestFlushDuration.Observe(c.now().Sub(start).Seconds())
	logging.FromContext(ctx).Debug().Ctx(ctx).Str("component", "ingest").
		Int("readings", len(c.pending)).Int("messages", len(c.messages)).
		Msg("batch flushed")

	c.pending = c.pending[:0]
	c.messages = c.messages[:0]
	c.lastFlush = c.now()
	return nil
}

func (c *Consumer) finalFlush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()
	if err := c.Flush(flushCtx); err != nil {
		logging.FromContext(ctx).Error().Ctx(ctx).Str("component", "ingest").Err(err).
			Int("dropped", c.buffered()).Msg("final flush failed")
	}
}

// buffered reports how many readings await the next flush.
func (c *Consumer) buffered() int { return len(c.pending) }

// MultiWriter fans a batch out to every writer concurrently.
type MultiWriter []ReadingWriter

// WriteReadings returns the first error any writer reports.
func (m MultiWriter) WriteReadings(ctx context.Context, readings []carbon.Reading) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range m {
		g.Go(func() error {
			return w.WriteReadings(gctx, readings)
		})
	}
	return g.Wait()
}
