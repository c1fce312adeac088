package services

import (
	"context"

	"gofinances/internal/core"
	"gofinances/internal/log"
)

// EventPublisher announces committed ledger changes. *amqp.Client implements
// it; a nil publisher disables events.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, t core.Transaction) error
	PublishTransactionDeleted(ctx context.Context, id string) error
	PublishTransactionsImported(ctx context.Context, ts []core.Transaction) error
}

// publish runs fn against events. Failures are logged and never returned:
// the ledger change is already committed.
func publish(ctx context.Context, logger *log.Logger, events EventPublisher, op string, fn func(EventPublisher) error) {
	if events == nil {
		logger.WarnContext(ctx, "Event publisher not available, skipping event", log.FieldOperation, op)
		return
	}
	if err := fn(events); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldOperation, op,
			log.FieldError, err)
	}
}

func defaultLogger(logger *log.Logger, component string) *log.Logger {
	if logger == nil {
		cfg := log.DefaultConfig()
		cfg.Component = component
		return log.New(cfg)
	}
	return logger.WithComponent(component)
}
