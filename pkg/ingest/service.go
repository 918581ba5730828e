package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixlabs/limsd/pkg/classify"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
)

// MessageLedger claims inbound messages exactly once. *Ledger implements it.
type MessageLedger interface {
	ClaimMessage(ctx context.Context, messageID, sourceSystem string, testOrderID int64, payload map[string]interface{}) (bool, error)
	RecordOutcome(ctx context.Context, messageID string, createdCount int) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	CleanupExpired(ctx context.Context, retention time.Duration) error
}

// ResultStore persists created results. *orders.Repository implements it.
type ResultStore interface {
	GetOrder(ctx context.Context, id int64) (*orders.TestOrder, error)
	CreateResults(ctx context.Context, results []orders.TestResult) error
}

// RangeResolver resolves the reference range applied at ingestion time.
type RangeResolver interface {
	ResolveRange(ctx context.Context, testCode, gender string) (*refrange.Config, error)
}

type Service struct {
	validator *Validator
	ledger    MessageLedger
	store     ResultStore
	ranges    RangeResolver
	retention time.Duration
}

func NewService(validator *Validator, ledger MessageLedger, store ResultStore, ranges RangeResolver, retention time.Duration) *Service {
	return &Service{
		validator: validator,
		ledger:    ledger,
		store:     store,
		ranges:    ranges,
		retention: retention,
	}
}

// ClaimAndIngest processes one inbound result message: claim the ledger row,
// create the order's results, classify them, record the outcome. Duplicate
// delivery is not an error; the caller gets AlreadyProcessed=true and must
// treat it as a successful no-op.
func (s *Service) ClaimAndIngest(ctx context.Context, msg models.ResultMessage) (*models.IngestOutcome, error) {
	if err := s.validator.Validate(msg); err != nil {
		return nil, err
	}

	// Resolve the order before claiming: a claim burned on an unknown order
	// would make the message unreprocessable after the order appears.
	order, err := s.store.GetOrder(ctx, msg.TestOrderID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.ledger.ClaimMessage(ctx, msg.MessageID, msg.SourceSystem, msg.TestOrderID, payloadOf(msg))
	if err != nil {
		return nil, fmt.Errorf("claiming message: %w", err)
	}
	if !claimed {
		logger.Log.WithFields(map[string]interface{}{
			"message_id":    msg.MessageID,
			"test_order_id": msg.TestOrderID,
		}).Info("duplicate message delivery, skipping")
		return &models.IngestOutcome{
			MessageID:        msg.MessageID,
			Success:          false,
			AlreadyProcessed: true,
			Timestamp:        time.Now().UTC(),
		}, nil
	}

	results, err := s.buildResults(ctx, order.ID, msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateResults(ctx, results); err != nil {
		return nil, fmt.Errorf("persisting results: %w", err)
	}
	if err := s.ledger.RecordOutcome(ctx, msg.MessageID, len(results)); err != nil {
		return nil, fmt.Errorf("recording outcome: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"message_id":    msg.MessageID,
		"test_order_id": msg.TestOrderID,
		"created":       len(results),
	}).Info("result message ingested")

	return &models.IngestOutcome{
		MessageID:    msg.MessageID,
		Success:      true,
		CreatedCount: len(results),
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (s *Service) buildResults(ctx context.Context, orderID int64, msg models.ResultMessage) ([]orders.TestResult, error) {
	results := make([]orders.TestResult, 0, len(msg.Results))
	for _, item := range msg.Results {
		result := orders.TestResult{
			TestOrderID:  orderID,
			TestCode:     refrange.NormalizeCode(item.TestCode),
			Parameter:    item.Parameter,
			ValueNumeric: item.Value,
			ValueText:    item.ValueText,
			Unit:         item.Unit,
			Gender:       item.Gender,
		}

		flag := classify.FlagUnclassified
		if item.Value != nil {
			rng, err := s.ranges.ResolveRange(ctx, result.TestCode, item.Gender)
			switch {
			case errors.Is(err, refrange.ErrRangeNotFound):
				// stays unclassified
			case err != nil:
				return nil, fmt.Errorf("resolving range for %s: %w", result.TestCode, err)
			default:
				flag = classify.Classify(*item.Value, rng.Min, rng.Max)
				result.ReferenceRange = rng.Display()
			}
		}
		result.Flag = flag.String()
		result.ResultStatus = classify.StatusFor(flag)

		results = append(results, result)
	}
	return results, nil
}

// RecentIngestions exposes the ledger tail for inspection.
func (s *Service) RecentIngestions(ctx context.Context, limit int) ([]Record, error) {
	return s.ledger.ListRecent(ctx, limit)
}

// Cleanup prunes ledger rows past the retention window.
func (s *Service) Cleanup(ctx context.Context) error {
	return s.ledger.CleanupExpired(ctx, s.retention)
}

func payloadOf(msg models.ResultMessage) map[string]interface{} {
	items := make([]interface{}, 0, len(msg.Results))
	for _, item := range msg.Results {
		entry := map[string]interface{}{
			"test_code": item.TestCode,
			"parameter": item.Parameter,
			"unit":      item.Unit,
			"gender":    item.Gender,
		}
		if item.Value != nil {
			entry["value"] = *item.Value
		}
		if item.ValueText != "" {
			entry["value_text"] = item.ValueText
		}
		items = append(items, entry)
	}
	return map[string]interface{}{
		"test_type": msg.TestType,
		"results":   items,
	}
}
