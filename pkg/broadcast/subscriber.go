package broadcast

import (
	"context"

	"go.uber.org/zap"
)

// Subscriber receives price notifications. A returned error or a panic is
// treated as a failure of this subscriber only.
type Subscriber interface {
	OnEvent(ctx context.Context, symbol string, value float64) error
}

// SubscriberFunc is the function form of a Subscriber.
type SubscriberFunc func(ctx context.Context, symbol string, value float64) error

// FuncSubscriber wraps a SubscriberFunc behind a pointer so it has an
// identity the Registry can compare and remove.
type FuncSubscriber struct {
	fn SubscriberFunc
}

func NewSubscriberFunc(fn SubscriberFunc) *FuncSubscriber {
	return &FuncSubscriber{fn: fn}
}

func (f *FuncSubscriber) OnEvent(ctx context.Context, symbol string, value float64) error {
	return f.fn(ctx, symbol, value)
}

// Event is a single price update.
type Event struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

// Logger abstracts the logging library
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}
