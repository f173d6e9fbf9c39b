// Package batchjob assigns scoring work to bounded batch jobs. For each
// item it finds-or-creates a compatible open batch job, creates the item's
// scoring job, links the two, and closes the batch once it fills.
package batchjob

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/internal/store"
)

// Resolver maps human identifiers to canonical IDs. A miss is ok=false,
// never an error.
type Resolver interface {
	Resolve(ctx context.Context, kind store.Kind, identifier string) (string, bool)
}

// AssignRequest describes one item needing a scoring job. Account and
// Scorecard accept either canonical IDs or human identifiers (key, name,
// external ID); they are resolved through the coordinator's resolver.
type AssignRequest struct {
	ItemID        string
	Account       string
	Scorecard     string
	ModelProvider string
	ModelName     string
	ScoreID       string
	Parameters    map[string]any
	Metadata      map[string]any

	// MaxBatchSize caps scoring jobs per batch job. Zero means
	// model.DefaultMaxBatchSize. The cap is soft: two concurrent assigns
	// can both pass the room check before either link lands, so a batch
	// may transiently overshoot by a small bounded margin before the
	// closing write arrives.
	MaxBatchSize int
}

// Coordinator is a synchronous client of the remote store; it has no
// background parts and every call blocks on the remote operations it
// issues. Errors propagate to the caller, which cannot proceed with
// downstream processing without a valid scoring job.
type Coordinator struct {
	jobs    store.ScoringJobs
	batches store.BatchJobs
	links   store.Links
	ids     Resolver
}

// New creates a coordinator. The resolver may be nil, in which case
// Account and Scorecard must already be canonical IDs.
func New(jobs store.ScoringJobs, batches store.BatchJobs, links store.Links, ids Resolver) *Coordinator {
	return &Coordinator{jobs: jobs, batches: batches, links: links, ids: ids}
}

// Assign returns the item's scoring job and the batch job it landed in.
// Repeated calls for the same item return the existing scoring job and
// never create a second one.
func (c *Coordinator) Assign(ctx context.Context, req AssignRequest) (*model.ScoringJob, *model.BatchJob, error) {
	if err := c.prepare(ctx, &req); err != nil {
		return nil, nil, err
	}

	// Idempotency: an existing scoring job for the item short-circuits
	// everything else.
	existing, err := c.jobs.FindByItemID(ctx, req.ItemID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "batchjob: idempotency check")
	}
	if existing != nil {
		return existing, c.existingBatch(ctx, existing), nil
	}

	batch, err := c.selectBatch(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	job, err := c.jobs.Create(ctx, model.ScoringJob{
		ItemID:      req.ItemID,
		AccountID:   req.Account,
		ScorecardID: req.Scorecard,
		ScoreID:     req.ScoreID,
		BatchID:     batch.ID,
		Status:      model.ScoringJobPending,
		Metadata:    req.Metadata,
		Parameters:  req.Parameters,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "batchjob: create scoring job")
	}

	if _, err := c.links.Create(ctx, batch.ID, job.ID); err != nil {
		return nil, nil, eris.Wrap(err, "batchjob: link scoring job")
	}

	batch, err = c.settle(ctx, batch, req.MaxBatchSize)
	if err != nil {
		return nil, nil, err
	}
	return job, batch, nil
}

// prepare validates the request, applies defaults, and resolves scoping
// identifiers to canonical IDs.
func (c *Coordinator) prepare(ctx context.Context, req *AssignRequest) error {
	switch {
	case req.ItemID == "":
		return eris.New("batchjob: item id is required")
	case req.Account == "":
		return eris.New("batchjob: account is required")
	case req.Scorecard == "":
		return eris.New("batchjob: scorecard is required")
	case req.ModelProvider == "":
		return eris.New("batchjob: model provider is required")
	case req.ModelName == "":
		return eris.New("batchjob: model name is required")
	}
	if req.MaxBatchSize <= 0 {
		req.MaxBatchSize = model.DefaultMaxBatchSize
	}
	if c.ids == nil {
		return nil
	}

	accountID, ok := c.ids.Resolve(ctx, store.KindAccount, req.Account)
	if !ok {
		return eris.Errorf("batchjob: unknown account %q", req.Account)
	}
	req.Account = accountID

	scorecardID, ok := c.ids.Resolve(ctx, store.KindScorecard, req.Scorecard)
	if !ok {
		return eris.Errorf("batchjob: unknown scorecard %q", req.Scorecard)
	}
	req.Scorecard = scorecardID

	if req.ScoreID != "" {
		scoreID, ok := c.ids.Resolve(ctx, store.KindScore, req.ScoreID)
		if !ok {
			return eris.Errorf("batchjob: unknown score %q", req.ScoreID)
		}
		req.ScoreID = scoreID
	}
	return nil
}

// existingBatch fetches the batch an existing scoring job links to. A
// missing or unfetchable link yields a nil batch and a warning, never a
// failure: the caller still gets its scoring job.
func (c *Coordinator) existingBatch(ctx context.Context, job *model.ScoringJob) *model.BatchJob {
	if job.BatchID == "" {
		zap.L().Warn("scoring job has no batch job link",
			zap.String("scoringJobId", job.ID),
			zap.String("itemId", job.ItemID))
		return nil
	}
	batch, err := c.batches.GetByID(ctx, job.BatchID)
	if err != nil {
		zap.L().Warn("failed to fetch linked batch job",
			zap.String("scoringJobId", job.ID),
			zap.String("batchJobId", job.BatchID),
			zap.Error(err))
		return nil
	}
	return batch
}

// selectBatch returns the first open batch job in the request's scope with
// room, or creates a fresh one. First-fit keeps selection simple; there is
// no attempt at least-loaded placement.
func (c *Coordinator) selectBatch(ctx context.Context, req AssignRequest) (*model.BatchJob, error) {
	scope := model.BatchScope{
		AccountID:     req.Account,
		ScorecardID:   req.Scorecard,
		ModelProvider: req.ModelProvider,
		ModelName:     req.ModelName,
	}
	open, err := c.batches.ListOpen(ctx, scope)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: list open batch jobs")
	}
	for i := range open {
		b := &open[i]
		if b.TotalRequests == nil || *b.TotalRequests < req.MaxBatchSize {
			return b, nil
		}
	}

	created, err := c.batches.Create(ctx, model.BatchJob{
		AccountID:            scope.AccountID,
		ScorecardID:          scope.ScorecardID,
		ModelProvider:        scope.ModelProvider,
		ModelName:            scope.ModelName,
		Status:               model.BatchJobOpen,
		ScoringJobCountCache: 0,
	})
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: create batch job")
	}
	return created, nil
}

// settle recomputes the batch's membership from the link table (concurrent
// coordinators may be writing links to the same batch), refreshes the
// cached count, and closes the batch once it is at capacity.
func (c *Coordinator) settle(ctx context.Context, batch *model.BatchJob, maxBatchSize int) (*model.BatchJob, error) {
	count, err := c.links.CountForBatch(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: recount links")
	}

	fields := map[string]any{"scoringJobCountCache": count}
	if count >= maxBatchSize && batch.Open() {
		fields["status"] = string(model.BatchJobClosed)
		zap.L().Info("closing batch job at capacity",
			zap.String("batchJobId", batch.ID),
			zap.Int("count", count),
			zap.Int("maxBatchSize", maxBatchSize))
	}

	updated, err := c.batches.Update(ctx, batch.ID, fields)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: update batch job")
	}
	return updated, nil
}
