package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-notifier/pkg/broadcast"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		// Returning DeadlineExceeded is a clean way to stop the feed loop in tests
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

func (m *MockKafkaWriter) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Messages)
}

// MockPublisher records published ticks. Errs, if set, is consumed one
// entry per Publish call; after it runs out Publish succeeds.
type MockPublisher struct {
	Events []broadcast.Event
	Errs   []error
	// CloseAfter makes Publish return broadcast.ErrClosed once this many ticks were accepted
	CloseAfter int
	Mu         sync.Mutex
}

func (m *MockPublisher) Publish(symbol string, value float64) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return err
		}
	}
	if m.CloseAfter > 0 && len(m.Events) >= m.CloseAfter {
		return broadcast.ErrClosed
	}

	m.Events = append(m.Events, broadcast.Event{Symbol: symbol, Value: value})
	return nil
}

func (m *MockPublisher) Published() []broadcast.Event {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]broadcast.Event(nil), m.Events...)
}

type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time        { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (m *MockRand) Intn(n int) int   { return m.ValInt }
func (m *MockRand) Float64() float64 { return m.ValFloat }
