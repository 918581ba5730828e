package models

import "time"

// Instrument feed models
type ResultMessage struct {
	MessageID    string       `json:"message_id"`
	SourceSystem string       `json:"source_system"` // analyzer, simulator, interface-engine
	TestOrderID  int64        `json:"test_order_id"`
	TestType     string       `json:"test_type"`
	Results      []ResultItem `json:"results"`
	Timestamp    time.Time    `json:"timestamp"`
}

type ResultItem struct {
	TestCode  string   `json:"test_code"`
	Parameter string   `json:"parameter"`
	Value     *float64 `json:"value,omitempty"`
	ValueText string   `json:"value_text,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Gender    string   `json:"gender,omitempty"`
}

type IngestOutcome struct {
	MessageID        string    `json:"message_id"`
	Success          bool      `json:"success"`
	AlreadyProcessed bool      `json:"already_processed"`
	CreatedCount     int       `json:"created_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // result.ingested, review.enabled, review.triggered, review.confirmed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Review workflow responses
type ReviewModeResponse struct {
	TestOrderID     int64 `json:"test_order_id"`
	AiReviewEnabled bool  `json:"ai_review_enabled"`
}

type TriggerReviewResponse struct {
	TestOrderID       int64        `json:"test_order_id"`
	Status            string       `json:"status"`
	IsAiReviewEnabled bool         `json:"is_ai_review_enabled"`
	AiReviewedResults []ResultView `json:"ai_reviewed_results"`
}

type ConfirmReviewResponse struct {
	TestOrderID      int64        `json:"test_order_id"`
	Status           string       `json:"status"`
	ConfirmedResults []ResultView `json:"confirmed_results"`
}

type ResultView struct {
	TestResultID      int64      `json:"test_result_id"`
	TestOrderID       int64      `json:"test_order_id"`
	TestCode          string     `json:"test_code"`
	Parameter         string     `json:"parameter"`
	ValueNumeric      *float64   `json:"value_numeric,omitempty"`
	ValueText         string     `json:"value_text,omitempty"`
	Unit              string     `json:"unit,omitempty"`
	ReferenceRange    string     `json:"reference_range,omitempty"`
	Flag              string     `json:"flag"`
	ResultStatus      string     `json:"result_status"`
	ReviewedByAI      bool       `json:"reviewed_by_ai"`
	AiReviewedDate    *time.Time `json:"ai_reviewed_date,omitempty"`
	IsConfirmed       bool       `json:"is_confirmed"`
	ConfirmedByUserID *int64     `json:"confirmed_by_user_id,omitempty"`
	ConfirmedDate     *time.Time `json:"confirmed_date,omitempty"`
}

// Flagging configuration sync models
type RangeConfigItem struct {
	TestCode      string     `json:"test_code"`
	Gender        *string    `json:"gender,omitempty"` // nil applies to all genders
	ParameterName string     `json:"parameter_name,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	Min           *float64   `json:"min,omitempty"`
	Max           *float64   `json:"max,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
}

type SyncResponse struct {
	Message string `json:"message"`
	Applied int    `json:"applied"`
}
