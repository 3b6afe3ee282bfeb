package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/crosssale/pkg/models"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newEvent(success bool) models.ReportEvent {
	return models.ReportEvent{
		EventID:         uuid.New(),
		Sex:             models.SexFemale,
		SelectedProduct: uuid.New(),
		ProposedProduct: uuid.New(),
		Success:         success,
		ReceivedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReportBus_PublishReports(t *testing.T) {
	t.Run("one message per event keyed by pair", func(t *testing.T) {
		writer := &fakeWriter{}
		bus := NewReportBusWith("crosssale-reports", writer, nil, testLogger())

		events := []models.ReportEvent{newEvent(true), newEvent(false)}
		require.NoError(t, bus.PublishReports(context.Background(), events))

		require.Len(t, writer.msgs, 2)
		for i, msg := range writer.msgs {
			assert.Equal(t, events[i].SelectedProduct.String()+":"+events[i].ProposedProduct.String(), string(msg.Key))

			var decoded models.ReportEvent
			require.NoError(t, json.Unmarshal(msg.Value, &decoded))
			assert.Equal(t, events[i], decoded)

			headers := map[string]string{}
			for _, h := range msg.Headers {
				headers[h.Key] = string(h.Value)
			}
			assert.Equal(t, events[i].EventID.String(), headers["event_id"])
			assert.Equal(t, "Female", headers["sex"])
			assert.Equal(t, "2024-03-01T12:00:00Z", headers["timestamp"])
		}
	})

	t.Run("no events writes nothing", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("must not be called")}
		bus := NewReportBusWith("crosssale-reports", writer, nil, testLogger())

		assert.NoError(t, bus.PublishReports(context.Background(), nil))
		assert.Empty(t, writer.msgs)
	})

	t.Run("writer failure is returned", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("broker down")}
		bus := NewReportBusWith("crosssale-reports", writer, nil, testLogger())

		err := bus.PublishReports(context.Background(), []models.ReportEvent{newEvent(true)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}

func TestReportBus_ConsumeReports(t *testing.T) {
	t.Run("decodes events and skips garbage", func(t *testing.T) {
		reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
		bus := NewReportBusWith("crosssale-reports", &fakeWriter{}, reader, testLogger())

		first, second := newEvent(true), newEvent(false)
		value, _ := json.Marshal(first)
		reader.msgs <- kafka.Message{Value: value}
		reader.msgs <- kafka.Message{Value: []byte("not json")}
		value, _ = json.Marshal(second)
		reader.msgs <- kafka.Message{Value: value}

		ctx, cancel := context.WithCancel(context.Background())
		var got []models.ReportEvent
		err := bus.ConsumeReports(ctx, func(e models.ReportEvent) error {
			got = append(got, e)
			if len(got) == 2 {
				cancel()
			}
			return nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []models.ReportEvent{first, second}, got)
	})

	t.Run("failing handler is retried", func(t *testing.T) {
		reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
		bus := NewReportBusWith("crosssale-reports", &fakeWriter{}, reader, testLogger())

		value, _ := json.Marshal(newEvent(true))
		reader.msgs <- kafka.Message{Value: value}

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := bus.ConsumeReports(ctx, func(models.ReportEvent) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			cancel()
			return nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 3, calls)
	})

	t.Run("requires a reader", func(t *testing.T) {
		bus := NewReportBusWith("crosssale-reports", &fakeWriter{}, nil, testLogger())
		assert.Error(t, bus.ConsumeReports(context.Background(), func(models.ReportEvent) error { return nil }))
	})
}

func TestReportBus_Close(t *testing.T) {
	writer := &fakeWriter{}
	bus := NewReportBusWith("crosssale-reports", writer, &fakeReader{}, testLogger())

	require.NoError(t, bus.Close())
	assert.True(t, writer.closed)
}
