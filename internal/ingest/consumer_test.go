package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenreport/internal/carbon"
)

// fakeFetcher replays queued messages. Once the queue is empty it either
// returns endErr or blocks until the poll context ends.
type fakeFetcher struct {
	mu        sync.Mutex
	queue     []kafka.Message
	endErr    error
	committed []kafka.Message
	drained   chan struct{}
	closed    bool
	once      sync.Once
}

func newFakeFetcher(endErr error, msgs ...kafka.Message) *fakeFetcher {
	return &fakeFetcher{queue: msgs, endErr: endErr, drained: make(chan struct{})}
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	f.once.Do(func() { close(f.drained) })
	if f.endErr != nil {
		return kafka.Message{}, f.endErr
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]carbon.Reading
	fail    int
}

func (w *recordingWriter) WriteReadings(_ context.Context, readings []carbon.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, append([]carbon.Reading(nil), readings...))
	if w.fail > 0 {
		w.fail--
		return errors.New("database unavailable")
	}
	return nil
}

func (w *recordingWriter) snapshot() [][]carbon.Reading {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]carbon.Reading(nil), w.batches...)
}

func sensorMessage(offset int64, device string) kafka.Message {
	return kafka.Message{
		Offset: offset,
		Value: []byte(fmt.Sprintf(
			`{"deviceCode":%q,"timestamp":"2025-02-01T09:%02d:00Z","electric":100}`, device, offset)),
	}
}

func TestConsumer_FlushesBySize(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(nil,
		sensorMessage(1, "dev-1"),
		kafka.Message{Offset: 2, Value: []byte(`{"timestamp":"2025-02-01T09:00:00Z"}`)},
		sensorMessage(3, "dev-1"),
		sensorMessage(4, "dev-2"),
		sensorMessage(5, "dev-2"),
	)
	writer := &recordingWriter{}
	consumer, err := NewConsumerWithFetcher(fetcher, writer, Config{
		BatchSize:     2,
		FlushInterval: time.Hour,
		PollTimeout:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	<-fetcher.drained
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	batches := writer.snapshot()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Equal(t, "dev-2", batches[1][0].DeviceID)
	assert.Equal(t, 5, fetcher.commitCount(), "rejected messages are committed with their batch")
	assert.True(t, fetcher.closed)
}

func TestConsumer_FinalFlushOnReaderClose(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(io.EOF, sensorMessage(1, "dev-1"), sensorMessage(2, "dev-1"))
	writer := &recordingWriter{}
	consumer, err := NewConsumerWithFetcher(fetcher, writer, Config{BatchSize: 10, FlushInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, consumer.Run(context.Background()))

	batches := writer.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 2, fetcher.commitCount())
	assert.Zero(t, consumer.buffered())
}

func TestConsumer_WriteFailureKeepsBatch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(kafka.ErrGroupClosed, sensorMessage(1, "dev-1"), sensorMessage(2, "dev-1"))
	writer := &recordingWriter{fail: 1}
	consumer, err := NewConsumerWithFetcher(fetcher, writer, Config{BatchSize: 1, FlushInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, consumer.Run(context.Background()))

	batches := writer.snapshot()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 1)
	assert.Len(t, batches[1], 2, "failed batch is retried with the next reading")
	assert.Equal(t, 2, fetcher.commitCount())
}

func TestConsumer_FlushesByAge(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(nil, sensorMessage(1, "dev-1"))
	writer := &recordingWriter{}
	consumer, err := NewConsumerWithFetcher(fetcher, writer, Config{
		BatchSize:     100,
		FlushInterval: time.Minute,
		PollTimeout:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	var ticks atomic.Int64
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	consumer.now = func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Minute)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return len(writer.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, writer.snapshot(), 1)
}

func TestConsumer_FetchError(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(errors.New("broker gone"))
	consumer, err := NewConsumerWithFetcher(fetcher, &recordingWriter{}, Config{})
	require.NoError(t, err)

	err = consumer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
}

func TestNewConsumer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewConsumer(Config{Topic: "sensor-readings"}, &recordingWriter{})
	require.Error(t, err)

	_, err = NewConsumer(Config{Brokers: []string{"localhost:9092"}}, &recordingWriter{})
	require.Error(t, err)

	_, err = NewConsumerWithFetcher(nil, &recordingWriter{}, Config{})
	require.Error(t, err)

	_, err = NewConsumerWithFetcher(newFakeFetcher(io.EOF), nil, Config{})
	require.Error(t, err)
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	a, b := &recordingWriter{}, &recordingWriter{}
	readings := []carbon.Reading{{DeviceID: "dev-1"}}

	require.NoError(t, MultiWriter{a, b}.WriteReadings(context.Background(), readings))
	assert.Len(t, a.snapshot(), 1)
	assert.Len(t, b.snapshot(), 1)

	failing := &recordingWriter{fail: 1}
	require.Error(t, MultiWriter{a, failing}.WriteReadings(context.Background(), readings))
}
