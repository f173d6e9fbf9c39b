// Package model defines the records exchanged with the dashboard API.
package model

import "time"

// DefaultBatchSize is the per-batch item cap applied when a score result
// does not carry one.
const DefaultBatchSize = 10

// DefaultBatchTimeout is the flush deadline applied when a score result
// does not carry one.
const DefaultBatchTimeout = 1 * time.Second

// ScoreResult is one scoring outcome submitted for logging. Value and the
// identifier fields are persisted remotely; BatchSize and BatchTimeout only
// control how the dispatcher groups the item and never leave the process.
type ScoreResult struct {
	Value        string         `json:"value"`
	ItemID       string         `json:"itemId"`
	AccountID    string         `json:"accountId"`
	ScorecardID  string         `json:"scorecardId"`
	ScoreID      string         `json:"scoreId,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ScoringJobID string         `json:"scoringJobId,omitempty"`
	EvaluationID string         `json:"evaluationId,omitempty"`

	// Dispatch configuration, not persisted.
	BatchSize    int           `json:"-"`
	BatchTimeout time.Duration `json:"-"`
}

// ScoreResultRecord is a score result as persisted by the remote store.
type ScoreResultRecord struct {
	ID           string         `json:"id"`
	Value        string         `json:"value"`
	ItemID       string         `json:"itemId"`
	AccountID    string         `json:"accountId"`
	ScorecardID  string         `json:"scorecardId"`
	ScoreID      string         `json:"scoreId,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ScoringJobID string         `json:"scoringJobId,omitempty"`
	EvaluationID string         `json:"evaluationId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
