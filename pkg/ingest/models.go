package ingest

import (
	"time"

	"gorm.io/datatypes"
)

// Record is one ledger entry. MessageID is globally unique: the row-locking
// read in ClaimMessage plus the unique index below together guarantee at
// most one record per message ever exists.
type Record struct {
	ID           string            `json:"id" gorm:"primaryKey;column:id"`
	MessageID    string            `json:"message_id" gorm:"column:message_id;uniqueIndex:ux_ledger_message_id;not null"`
	SourceSystem string            `json:"source_system" gorm:"column:source_system"`
	TestOrderID  int64             `json:"test_order_id" gorm:"column:test_order_id;index"`
	Payload      datatypes.JSONMap `json:"payload" gorm:"column:payload"`
	CreatedCount int               `json:"created_count" gorm:"column:created_count"`
	ProcessedAt  time.Time         `json:"processed_at" gorm:"column:processed_at"`
	CreatedAt    time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "ingestion_ledger"
}
