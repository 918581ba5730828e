package refrange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is one versioned reference range. Identity is (TestCode, Gender);
// an empty Gender means the range applies to all genders. Updates bump
// Version in place; rows are deactivated, never deleted.
type Config struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TestCode      string     `gorm:"size:64;not null;uniqueIndex:ux_ranges_code_gender,priority:1" json:"test_code"`
	Gender        string     `gorm:"size:16;not null;default:'';uniqueIndex:ux_ranges_code_gender,priority:2" json:"gender,omitempty"`
	ParameterName string     `json:"parameter_name"`
	Unit          string     `gorm:"size:32" json:"unit"`
	Min           float64    `json:"min"`
	Max           float64    `json:"max"`
	Version       int        `json:"version"`
	IsActive      bool       `gorm:"index" json:"is_active"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Config) TableName() string {
	return "reference_range_configs"
}

// Display renders the range the way it is shown on result rows.
func (c Config) Display() string {
	s := fmt.Sprintf("%s - %s", formatBound(c.Min), formatBound(c.Max))
	if c.Unit != "" {
		s += " " + c.Unit
	}
	return s
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeCode upper-cases and trims a test code. Codes are normalized on
// every write and every lookup so stored and queried keys always agree.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
