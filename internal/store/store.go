// Package store exposes typed record operations over the gateway. Every
// operation uses a fixed document with caller input passed as variables,
// never interpolated into the document text.
package store

import (
	"context"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

// ScoreResults persists scoring outcomes, singly or in bulk.
type ScoreResults interface {
	Create(ctx context.Context, item model.ScoreResult) (*model.ScoreResultRecord, error)
	BatchCreate(ctx context.Context, items []model.ScoreResult) ([]model.ScoreResultRecord, error)
}

// ScoringJobs is the scoring job CRUD surface.
type ScoringJobs interface {
	Create(ctx context.Context, job model.ScoringJob) (*model.ScoringJob, error)
	GetByID(ctx context.Context, id string) (*model.ScoringJob, error)
	// FindByItemID returns (nil, nil) when no scoring job exists for the item.
	FindByItemID(ctx context.Context, itemID string) (*model.ScoringJob, error)
	Update(ctx context.Context, id string, fields map[string]any) (*model.ScoringJob, error)
}

// BatchJobs is the batch job CRUD surface.
type BatchJobs interface {
	Create(ctx context.Context, job model.BatchJob) (*model.BatchJob, error)
	GetByID(ctx context.Context, id string) (*model.BatchJob, error)
	Update(ctx context.Context, id string, fields map[string]any) (*model.BatchJob, error)
	ListOpen(ctx context.Context, scope model.BatchScope) ([]model.BatchJob, error)
}

// Links manages the batch-job/scoring-job join records. The join table is
// the authoritative membership count; CountForBatch pages through it.
type Links interface {
	Create(ctx context.Context, batchJobID, scoringJobID string) (*model.BatchJobLink, error)
	CountForBatch(ctx context.Context, batchJobID string) (int, error)
}

// Identifiers resolves human identifiers to canonical IDs, one lookup
// method at a time. Each method returns "" (or false) on a miss without
// an error; errors mean the lookup itself failed.
type Identifiers interface {
	Exists(ctx context.Context, kind Kind, id string) (bool, error)
	FindByKey(ctx context.Context, kind Kind, key string) (string, error)
	FindByName(ctx context.Context, kind Kind, name string) (string, error)
	FindByExternalID(ctx context.Context, kind Kind, externalID string) (string, error)
}

// Remote bundles all record surfaces backed by one gateway client.
type Remote struct {
	ScoreResults ScoreResults
	ScoringJobs  ScoringJobs
	BatchJobs    BatchJobs
	Links        Links
	Identifiers  Identifiers
}

// New creates the remote store surfaces over the given gateway client.
func New(gw gateway.Client) *Remote {
	return &Remote{
		ScoreResults: &scoreResultStore{gw: gw},
		ScoringJobs:  &scoringJobStore{gw: gw},
		BatchJobs:    &batchJobStore{gw: gw},
		Links:        &linkStore{gw: gw, pageSize: defaultLinkPageSize},
		Identifiers:  &identifierStore{gw: gw},
	}
}

// execute runs one operation and checks both failure layers: the transport
// error from Execute and the application errors payload in the result. When
// field is non-empty the named data field is decoded into out.
func execute(ctx context.Context, gw gateway.Client, op gateway.Operation, field string, out any) error {
	res, err := gw.Execute(ctx, op)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.Decode(field, out)
}
