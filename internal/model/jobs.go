package model

import "time"

// ScoringJobStatus represents the processing state of a scoring job.
type ScoringJobStatus string

const (
	ScoringJobPending    ScoringJobStatus = "PENDING"
	ScoringJobInProgress ScoringJobStatus = "IN_PROGRESS"
	ScoringJobComplete   ScoringJobStatus = "COMPLETE"
	ScoringJobFailed     ScoringJobStatus = "FAILED"
)

// BatchJobStatus represents whether a batch job accepts more scoring jobs.
type BatchJobStatus string

const (
	BatchJobOpen   BatchJobStatus = "OPEN"
	BatchJobClosed BatchJobStatus = "CLOSED"
)

// DefaultMaxBatchSize caps how many scoring jobs a batch job accepts before
// the coordinator closes it.
const DefaultMaxBatchSize = 20

// ScoringJob records one item's pending-or-completed scoring operation.
// The coordinator guarantees at most one per item.
type ScoringJob struct {
	ID           string           `json:"id"`
	ItemID       string           `json:"itemId"`
	AccountID    string           `json:"accountId"`
	ScorecardID  string           `json:"scorecardId"`
	ScoreID      string           `json:"scoreId,omitempty"`
	BatchID      string           `json:"batchId,omitempty"`
	Status       ScoringJobStatus `json:"status"`
	EvaluationID string           `json:"evaluationId,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Parameters   map[string]any   `json:"parameters,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// BatchJob groups scoring jobs for downstream processing. Every linked
// scoring job shares the batch job's (account, scorecard, provider, model)
// tuple. ScoringJobCountCache mirrors the link table and is recomputed from
// it, never trusted blindly.
type BatchJob struct {
	ID                   string         `json:"id"`
	AccountID            string         `json:"accountId"`
	ScorecardID          string         `json:"scorecardId"`
	ModelProvider        string         `json:"modelProvider"`
	ModelName            string         `json:"modelName"`
	Status               BatchJobStatus `json:"status"`
	TotalRequests        *int           `json:"totalRequests,omitempty"`
	ScoringJobCountCache int            `json:"scoringJobCountCache"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Open reports whether the batch job still accepts scoring jobs.
func (b *BatchJob) Open() bool {
	return b.Status == BatchJobOpen
}

// BatchJobLink joins a scoring job to its batch job. The link table is the
// authoritative source for batch job membership counts.
type BatchJobLink struct {
	BatchJobID   string    `json:"batchJobId"`
	ScoringJobID string    `json:"scoringJobId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BatchScope is the compatibility tuple a batch job is bound to.
type BatchScope struct {
	AccountID     string `json:"accountId"`
	ScorecardID   string `json:"scorecardId"`
	ModelProvider string `json:"modelProvider"`
	ModelName     string `json:"modelName"`
}

// Scope returns the batch job's compatibility tuple.
func (b *BatchJob) Scope() BatchScope {
	return BatchScope{
		AccountID:     b.AccountID,
		ScorecardID:   b.ScorecardID,
		ModelProvider: b.ModelProvider,
		ModelName:     b.ModelName,
	}
}
