package ingest

import (
	"context"
	"encoding/json"
	"errors"

	kafkax "github.com/helixlabs/limsd/pkg/common/kafka"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
)

// Feed consumes the instrument result topic and drives ClaimAndIngest.
// Permanently-bad messages (unparseable, failing validation, unknown order)
// go to the DLQ and are committed; transient failures are left uncommitted
// so the broker redelivers them, which the idempotent claim makes safe.
type Feed struct {
	consumer *kafkax.Consumer
	service  *Service
	dlq      *kafkax.Producer
}

func NewFeed(consumer *kafkax.Consumer, service *Service, dlq *kafkax.Producer) *Feed {
	return &Feed{consumer: consumer, service: service, dlq: dlq}
}

func (f *Feed) Run(ctx context.Context) error {
	return f.consumer.Consume(ctx, f.handle)
}

func (f *Feed) handle(ctx context.Context, key, value []byte) error {
	var msg models.ResultMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		logger.Log.WithError(err).Warn("unparseable result message, dead-lettering")
		f.deadLetter(ctx, string(key), value)
		return nil
	}

	outcome, err := f.service.ClaimAndIngest(ctx, msg)
	if err != nil {
		if IsValidationError(err) || errors.Is(err, orders.ErrOrderNotFound) {
			logger.Log.WithError(err).WithField("message_id", msg.MessageID).Warn("rejected result message, dead-lettering")
			f.deadLetter(ctx, msg.MessageID, value)
			return nil
		}
		return err
	}

	if outcome.AlreadyProcessed {
		logger.Log.WithField("message_id", msg.MessageID).Debug("duplicate delivery committed as no-op")
	}
	return nil
}

func (f *Feed) deadLetter(ctx context.Context, key string, value []byte) {
	if f.dlq == nil {
		return
	}
	if err := f.dlq.PublishRaw(ctx, key, value); err != nil {
		logger.Log.WithError(err).Error("failed to push message to DLQ")
	}
}
