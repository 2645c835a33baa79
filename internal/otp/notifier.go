package otp

import (
	"context"
	"log/slog"
)

// Notifier delivers a dispatched code to the shopper's phone.
type Notifier interface {
	Deliver(ctx context.Context, phone, code string) error
}

// LoggerNotifier writes codes to the structured log instead of sending SMS.
// It backs the local provider in development and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging delivery stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Deliver logs the code for the operator to read.
func (n *LoggerNotifier) Deliver(_ context.Context, phone, code string) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("verification code", "phone", phone, "code", code)
	return nil
}
