package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("test order not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&TestOrder{}, &TestResult{})
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*TestOrder, error) {
	var order TestOrder
	err := r.db.WithContext(ctx).First(&order, "test_order_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) SetAiReviewEnabled(ctx context.Context, id int64, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&TestOrder{}).
		Where("test_order_id = ?", id).
		Updates(map[string]interface{}{"is_ai_review_enabled": enabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) ResultsByOrder(ctx context.Context, orderID int64) ([]TestResult, error) {
	var results []TestResult
	err := r.db.WithContext(ctx).
		Where("test_order_id = ?", orderID).
		Order("test_result_id").
		Find(&results).Error
	return results, err
}

func (r *Repository) CreateResults(ctx context.Context, results []TestResult) error {
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range results {
		results[i].CreatedAt = now
		results[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Create(&results).Error
}

// CompleteReviewPass persists one AI review pass atomically: every result's
// classification columns and the order's status advance commit in a single
// transaction, so a half-applied pass is never visible to concurrent
// readers. Each target row is re-fetched by primary key inside the
// transaction and only the classification-owned columns are written, so
// concurrent writes to unrelated columns are never clobbered.
func (r *Repository) CompleteReviewPass(ctx context.Context, orderID int64, updates []TestResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, u := range updates {
			var current TestResult
			if err := tx.First(&current, "test_result_id = ?", u.ID).Error; err != nil {
				return err
			}
			err := tx.Model(&current).Updates(map[string]interface{}{
				"flag":             u.Flag,
				"result_status":    u.ResultStatus,
				"reference_range":  u.ReferenceRange,
				"reviewed_by_ai":   u.ReviewedByAI,
				"ai_reviewed_date": u.AiReviewedDate,
				"updated_at":       now,
			}).Error
			if err != nil {
				return err
			}
		}

		res := tx.Model(&TestOrder{}).
			Where("test_order_id = ?", orderID).
			Updates(map[string]interface{}{"status": StatusReviewedByAI, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
}

// BulkConfirm stamps the confirmation columns on the given results in a
// single statement, so a partially-confirmed set is never visible to
// concurrent readers. Rows already confirmed or never AI-reviewed are left
// alone regardless of the id list.
func (r *Repository) BulkConfirm(ctx context.Context, ids []int64, userID int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&TestResult{}).
		Where("test_result_id IN ? AND reviewed_by_ai = ? AND is_confirmed = ?", ids, true, false).
		Updates(map[string]interface{}{
			"is_confirmed":         true,
			"confirmed_by_user_id": userID,
			"confirmed_date":       at,
			"updated_at":           at,
		})
	return res.RowsAffected, res.Error
}
