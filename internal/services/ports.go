package services

import (
	"context"

	"ledgerly/internal/amqp"
)

// ChangePublisher announces ledger writes to other processes.
// *amqp.Client implements it.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}
