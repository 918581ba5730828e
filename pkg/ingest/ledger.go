package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRecordNotFound = errors.New("ingestion record not found")

// Ledger is the idempotency bookkeeping for inbound result messages.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) AutoMigrate() error {
	return l.db.AutoMigrate(&Record{})
}

// ClaimMessage returns true exactly once per distinct messageID, under
// concurrent invocation included. The transaction takes a row lock on any
// existing ledger row before deciding, so two concurrent claims for the same
// message serialize; the unique index on message_id is the second line of
// defense if the insert itself loses the race at the storage layer.
func (l *Ledger) ClaimMessage(ctx context.Context, messageID, sourceSystem string, testOrderID int64, payload map[string]interface{}) (bool, error) {
	claimed := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("message_id = ?", messageID).
			First(&existing).Error
		if err == nil {
			return nil // already claimed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		record := Record{
			ID:           uuid.New().String(),
			MessageID:    messageID,
			SourceSystem: sourceSystem,
			TestOrderID:  testOrderID,
			Payload:      datatypes.JSONMap(payload),
			ProcessedAt:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the insert race; same outcome as finding the row.
				return nil
			}
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// RecordOutcome stores the number of results the claimed message produced.
// It never creates a row; an unknown messageID is a logged no-op.
func (l *Ledger) RecordOutcome(ctx context.Context, messageID string, createdCount int) error {
	res := l.db.WithContext(ctx).Model(&Record{}).
		Where("message_id = ?", messageID).
		Updates(map[string]interface{}{
			"created_count": createdCount,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.Log.WithField("message_id", messageID).Warn("outcome recorded for unknown message, ignoring")
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, messageID string) (*Record, error) {
	var record Record
	err := l.db.WithContext(ctx).First(&record, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := l.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit)).Find(&records).Error
	return records, err
}

// clampLimit defaults an unset page size and caps an oversized one.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

// CleanupExpired prunes ledger rows older than the retention window.
// A zero retention disables pruning.
func (l *Ledger) CleanupExpired(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	return l.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Record{}).Error
}
