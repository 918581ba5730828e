// Package orders holds the test-order aggregate and its result store.
package orders

import "time"

// Order workflow statuses persisted on the order row. Only the review
// machinery writes StatusReviewedByAI; StatusCompleted belongs to downstream
// completion logic.
const (
	StatusCreated      = "Created"
	StatusReviewedByAI = "Reviewed By AI"
	StatusCompleted    = "Completed"
)

type TestOrder struct {
	ID                int64     `gorm:"primaryKey;column:test_order_id" json:"test_order_id"`
	PatientID         int64     `gorm:"index" json:"patient_id"`
	TestType          string    `gorm:"size:64" json:"test_type"`
	Status            string    `gorm:"size:32" json:"status"`
	IsAiReviewEnabled bool      `json:"is_ai_review_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Results []TestResult `gorm:"foreignKey:TestOrderID" json:"results,omitempty"`
}

func (TestOrder) TableName() string {
	return "test_orders"
}

// TestResult rows are created by ingestion and mutated only by
// classification and the review workflow. They are never deleted.
type TestResult struct {
	ID                int64      `gorm:"primaryKey;column:test_result_id" json:"test_result_id"`
	TestOrderID       int64      `gorm:"index;not null" json:"test_order_id"`
	TestCode          string     `gorm:"size:64;index" json:"test_code"`
	Parameter         string     `json:"parameter"`
	ValueNumeric      *float64   `json:"value_numeric,omitempty"`
	ValueText         string     `json:"value_text,omitempty"`
	Unit              string     `gorm:"size:32" json:"unit,omitempty"`
	Gender            string     `gorm:"size:16" json:"gender,omitempty"`
	ReferenceRange    string     `gorm:"size:64" json:"reference_range,omitempty"`
	Flag              string     `gorm:"size:16" json:"flag"`
	ResultStatus      string     `gorm:"size:16" json:"result_status"`
	ReviewedByAI      bool       `json:"reviewed_by_ai"`
	AiReviewedDate    *time.Time `json:"ai_reviewed_date,omitempty"`
	IsConfirmed       bool       `json:"is_confirmed"`
	ConfirmedByUserID *int64     `json:"confirmed_by_user_id,omitempty"`
	ConfirmedDate     *time.Time `json:"confirmed_date,omitempty"`
	ReviewedByUserID  *int64     `json:"reviewed_by_user_id,omitempty"`
	ReviewedDate      *time.Time `json:"reviewed_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (TestResult) TableName() string {
	return "test_results"
}
