package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/helixlabs/limsd/pkg/classify"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
	"github.com/redis/go-redis/v9"
)

// OrderStore is the persistence surface the service needs.
// *orders.Repository implements it; tests use an in-memory fake.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*orders.TestOrder, error)
	ResultsByOrder(ctx context.Context, orderID int64) ([]orders.TestResult, error)
	SetAiReviewEnabled(ctx context.Context, id int64, enabled bool) error
	CompleteReviewPass(ctx context.Context, orderID int64, updates []orders.TestResult) error
	BulkConfirm(ctx context.Context, ids []int64, userID int64, at time.Time) (int64, error)
}

// RangeResolver resolves the applicable reference range for one result.
type RangeResolver interface {
	ResolveRange(ctx context.Context, testCode, gender string) (*refrange.Config, error)
}

// Publisher emits review lifecycle events. May be nil (events disabled).
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	store     OrderStore
	ranges    RangeResolver
	events    Publisher
	cache     *redis.Client
	statusTTL time.Duration
}

func NewService(store OrderStore, ranges RangeResolver, events Publisher, cache *redis.Client, statusTTL time.Duration) *Service {
	return &Service{store: store, ranges: ranges, events: events, cache: cache, statusTTL: statusTTL}
}

// SetReviewMode toggles the AI-review switch. It never changes the order
// status; enabling only unlocks the Trigger transition.
func (s *Service) SetReviewMode(ctx context.Context, orderID int64, enable bool) (*models.ReviewModeResponse, error) {
	if err := s.store.SetAiReviewEnabled(ctx, orderID, enable); err != nil {
		return nil, err
	}
	s.dropStatusCache(ctx, orderID)
	s.publish(ctx, "review.enabled", map[string]interface{}{
		"test_order_id": orderID,
		"enabled":       enable,
	})
	return &models.ReviewModeResponse{TestOrderID: orderID, AiReviewEnabled: enable}, nil
}

// ReviewStatus reports the switch position. An order with no review state
// yet reads as disabled rather than erroring.
func (s *Service) ReviewStatus(ctx context.Context, orderID int64) (*models.ReviewModeResponse, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statusCacheKey(orderID)).Bytes(); err == nil {
			var resp models.ReviewModeResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	resp := &models.ReviewModeResponse{TestOrderID: orderID}
	order, err := s.store.GetOrder(ctx, orderID)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		// default disabled
	case err != nil:
		return nil, err
	default:
		resp.AiReviewEnabled = order.IsAiReviewEnabled
	}

	if s.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, statusCacheKey(orderID), raw, s.statusTTL).Err(); err != nil {
				logger.Log.WithError(err).Warn("review status cache write failed")
			}
		}
	}
	return resp, nil
}

// TriggerReview runs a fresh classification pass over every result in the
// order, stamps them AI-reviewed, and moves the order to "Reviewed By AI".
// Guard: the order must have AI review enabled. Confirmation flags from
// earlier passes are left untouched.
func (s *Service) TriggerReview(ctx context.Context, orderID int64) (*models.TriggerReviewResponse, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := CanTrigger(order); err != nil {
		return nil, err
	}

	results, err := s.store.ResultsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := make([]orders.TestResult, 0, len(results))
	for i := range results {
		if err := s.classifyResult(ctx, &results[i]); err != nil {
			return nil, err
		}
		results[i].ReviewedByAI = true
		results[i].AiReviewedDate = &now
		updates = append(updates, results[i])
	}

	// One transaction for the whole pass: the classified results and the
	// status advance become visible together or not at all.
	if err := s.store.CompleteReviewPass(ctx, orderID, updates); err != nil {
		return nil, fmt.Errorf("persisting review pass: %w", err)
	}
	s.dropStatusCache(ctx, orderID)

	logger.Log.WithFields(map[string]interface{}{
		"test_order_id": orderID,
		"results":       len(updates),
	}).Info("AI review pass completed")
	s.publish(ctx, "review.triggered", map[string]interface{}{
		"test_order_id": orderID,
		"results":       len(updates),
	})

	return &models.TriggerReviewResponse{
		TestOrderID:       orderID,
		Status:            orders.StatusReviewedByAI,
		IsAiReviewEnabled: true,
		AiReviewedResults: viewsOf(results),
	}, nil
}

// ConfirmResults ratifies every AI-reviewed, not-yet-confirmed result in one
// batch write. Guards: at least one result must be AI-reviewed, and at least
// one of those must still be unconfirmed.
func (s *Service) ConfirmResults(ctx context.Context, orderID int64, confirmedByUserID int64) (*models.ConfirmReviewResponse, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	results, err := s.store.ResultsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	pending, err := ConfirmScope(results)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	affected, err := s.store.BulkConfirm(ctx, pending, confirmedByUserID, now)
	if err != nil {
		return nil, fmt.Errorf("persisting confirmation: %w", err)
	}
	if affected < int64(len(pending)) {
		logger.Log.WithFields(map[string]interface{}{
			"test_order_id": orderID,
			"pending":       len(pending),
			"confirmed":     affected,
		}).Info("concurrent confirmation won part of the pending set")
	}

	// Re-read and report only the rows this call stamped; a concurrent
	// confirm may have taken some of the pending set first.
	updated, err := s.store.ResultsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	pendingSet := make(map[int64]struct{}, len(pending))
	for _, id := range pending {
		pendingSet[id] = struct{}{}
	}
	confirmed := make([]orders.TestResult, 0, len(pending))
	for _, r := range updated {
		if _, ok := pendingSet[r.ID]; !ok {
			continue
		}
		if r.ConfirmedByUserID == nil || *r.ConfirmedByUserID != confirmedByUserID {
			continue
		}
		if r.ConfirmedDate == nil || !r.ConfirmedDate.Equal(now) {
			continue
		}
		confirmed = append(confirmed, r)
	}

	logger.Log.WithFields(map[string]interface{}{
		"test_order_id": orderID,
		"confirmed":     affected,
		"user_id":       confirmedByUserID,
	}).Info("AI review results confirmed")
	s.publish(ctx, "review.confirmed", map[string]interface{}{
		"test_order_id": orderID,
		"confirmed":     affected,
		"user_id":       confirmedByUserID,
	})

	return &models.ConfirmReviewResponse{
		TestOrderID:      orderID,
		Status:           order.Status,
		ConfirmedResults: viewsOf(confirmed),
	}, nil
}

// OrderResults returns the order's results with their flags and review
// state, for the UI boundary.
func (s *Service) OrderResults(ctx context.Context, orderID int64) ([]models.ResultView, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	results, err := s.store.ResultsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return viewsOf(results), nil
}

func (s *Service) classifyResult(ctx context.Context, r *orders.TestResult) error {
	if r.ValueNumeric == nil {
		// Text-only results are stamped reviewed but stay unclassified.
		r.Flag = classify.FlagUnclassified.String()
		r.ResultStatus = classify.StatusFor(classify.FlagUnclassified)
		return nil
	}

	rng, err := s.ranges.ResolveRange(ctx, r.TestCode, r.Gender)
	switch {
	case errors.Is(err, refrange.ErrRangeNotFound):
		r.Flag = classify.FlagUnclassified.String()
		r.ResultStatus = classify.StatusFor(classify.FlagUnclassified)
		return nil
	case err != nil:
		return fmt.Errorf("resolving range for %s: %w", r.TestCode, err)
	}

	flag := classify.Classify(*r.ValueNumeric, rng.Min, rng.Max)
	r.Flag = flag.String()
	r.ResultStatus = classify.StatusFor(flag)
	r.ReferenceRange = rng.Display()
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, "review-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish review event")
	}
}

func (s *Service) dropStatusCache(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusCacheKey(orderID)).Err(); err != nil {
		logger.Log.WithError(err).Warn("review status cache invalidation failed")
	}
}

func statusCacheKey(orderID int64) string {
	return fmt.Sprintf("review:status:%d", orderID)
}

func viewsOf(results []orders.TestResult) []models.ResultView {
	views := make([]models.ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, models.ResultView{
			TestResultID:      r.ID,
			TestOrderID:       r.TestOrderID,
			TestCode:          r.TestCode,
			Parameter:         r.Parameter,
			ValueNumeric:      r.ValueNumeric,
			ValueText:         r.ValueText,
			Unit:              r.Unit,
			ReferenceRange:    r.ReferenceRange,
			Flag:              r.Flag,
			ResultStatus:      r.ResultStatus,
			ReviewedByAI:      r.ReviewedByAI,
			AiReviewedDate:    r.AiReviewedDate,
			IsConfirmed:       r.IsConfirmed,
			ConfirmedByUserID: r.ConfirmedByUserID,
			ConfirmedDate:     r.ConfirmedDate,
		})
	}
	return views
}
