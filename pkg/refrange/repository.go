package refrange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helixlabs/limsd/pkg/common/models"
	"gorm.io/gorm"
)

var ErrRangeNotFound = errors.New("reference range not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Config{})
}

// ActiveConfigs returns every active config for the test code, most recent
// version first, both gender-specific and gender-agnostic rows.
func (r *Repository) ActiveConfigs(ctx context.Context, testCode string) ([]Config, error) {
	var configs []Config
	err := r.db.WithContext(ctx).
		Where("test_code = ? AND is_active = ?", NormalizeCode(testCode), true).
		Order("version DESC").
		Find(&configs).Error
	return configs, err
}

// SyncConfigs applies a config batch in one transaction, keyed by
// (TestCode, Gender). Existing keys are updated in place with a version bump
// only when a field actually changed; new keys require the full field set.
// Any invalid item rolls the whole batch back.
func (r *Repository) SyncConfigs(ctx context.Context, items []models.RangeConfigItem) (int, error) {
	if err := validateItems(items); err != nil {
		return 0, err
	}

	applied := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, item := range items {
			code := NormalizeCode(item.TestCode)
			gender := ""
			if item.Gender != nil {
				gender = strings.TrimSpace(*item.Gender)
			}

			var existing Config
			err := tx.Where("test_code = ? AND gender = ?", code, gender).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if item.ParameterName == "" || item.Unit == "" || item.Min == nil || item.Max == nil {
					return ValidationError{reason: fmt.Errorf(
						"item %d (%s): new range keys require parameter_name, unit, min and max", i, code)}
				}
				cfg := Config{
					TestCode:      code,
					Gender:        gender,
					ParameterName: item.ParameterName,
					Unit:          item.Unit,
					Min:           *item.Min,
					Max:           *item.Max,
					Version:       1,
					IsActive:      true,
					EffectiveDate: item.EffectiveDate,
				}
				if err := tx.Create(&cfg).Error; err != nil {
					return err
				}
				applied++

			case err != nil:
				return err

			default:
				updates := map[string]interface{}{}
				if item.ParameterName != "" && item.ParameterName != existing.ParameterName {
					updates["parameter_name"] = item.ParameterName
				}
				if item.Unit != "" && item.Unit != existing.Unit {
					updates["unit"] = item.Unit
				}
				mergedMin, mergedMax := existing.Min, existing.Max
				if item.Min != nil && *item.Min != existing.Min {
					mergedMin = *item.Min
					updates["min"] = mergedMin
				}
				if item.Max != nil && *item.Max != existing.Max {
					mergedMax = *item.Max
					updates["max"] = mergedMax
				}
				if mergedMin >= mergedMax {
					return ValidationError{reason: fmt.Errorf(
						"item %d (%s): min %v must be strictly less than max %v", i, code, mergedMin, mergedMax)}
				}
				if item.EffectiveDate != nil && !timesEqual(item.EffectiveDate, existing.EffectiveDate) {
					updates["effective_date"] = item.EffectiveDate
				}
				if !existing.IsActive {
					updates["is_active"] = true
				}
				if len(updates) == 0 {
					// Unchanged sync is a no-op; no version inflation.
					continue
				}
				updates["version"] = existing.Version + 1
				updates["updated_at"] = time.Now().UTC()
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// Deactivate retires a range key without deleting its row.
func (r *Repository) Deactivate(ctx context.Context, testCode, gender string) error {
	res := r.db.WithContext(ctx).Model(&Config{}).
		Where("test_code = ? AND gender = ? AND is_active = ?", NormalizeCode(testCode), gender, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRangeNotFound
	}
	return nil
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
