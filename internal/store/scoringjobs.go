package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

const scoringJobFields = `id itemId accountId scorecardId scoreId batchId status evaluationId metadata parameters createdAt updatedAt`

const createScoringJobDoc = `mutation CreateScoringJob($input: CreateScoringJobInput!) {
  createScoringJob(input: $input) { ` + scoringJobFields + ` }
}`

const getScoringJobDoc = `query GetScoringJob($id: ID!) {
  getScoringJob(id: $id) { ` + scoringJobFields + ` }
}`

const listScoringJobByItemDoc = `query ListScoringJobByItemId($itemId: String!) {
  listScoringJobByItemId(itemId: $itemId, limit: 1) {
    items { ` + scoringJobFields + ` }
  }
}`

const updateScoringJobDoc = `mutation UpdateScoringJob($input: UpdateScoringJobInput!) {
  updateScoringJob(input: $input) { ` + scoringJobFields + ` }
}`

type scoringJobStore struct {
	gw gateway.Client
}

func (s *scoringJobStore) Create(ctx context.Context, job model.ScoringJob) (*model.ScoringJob, error) {
	input := map[string]any{
		"itemId":      job.ItemID,
		"accountId":   job.AccountID,
		"scorecardId": job.ScorecardID,
		"status":      string(job.Status),
	}
	if job.ScoreID != "" {
		input["scoreId"] = job.ScoreID
	}
	if job.BatchID != "" {
		input["batchId"] = job.BatchID
	}
	if job.EvaluationID != "" {
		input["evaluationId"] = job.EvaluationID
	}
	if len(job.Metadata) > 0 {
		input["metadata"] = job.Metadata
	}
	if len(job.Parameters) > 0 {
		input["parameters"] = job.Parameters
	}

	op := gateway.Operation{
		Name:      "CreateScoringJob",
		Document:  createScoringJobDoc,
		Variables: map[string]any{"input": input},
	}
	var created model.ScoringJob
	if err := execute(ctx, s.gw, op, "createScoringJob", &created); err != nil {
		return nil, eris.Wrap(err, "store: create scoring job")
	}
	return &created, nil
}

func (s *scoringJobStore) GetByID(ctx context.Context, id string) (*model.ScoringJob, error) {
	op := gateway.Operation{
		Name:      "GetScoringJob",
		Document:  getScoringJobDoc,
		Variables: map[string]any{"id": id},
	}
	var job model.ScoringJob
	if err := execute(ctx, s.gw, op, "getScoringJob", &job); err != nil {
		return nil, eris.Wrap(err, "store: get scoring job "+id)
	}
	return &job, nil
}

func (s *scoringJobStore) FindByItemID(ctx context.Context, itemID string) (*model.ScoringJob, error) {
	op := gateway.Operation{
		Name:      "ListScoringJobByItemId",
		Document:  listScoringJobByItemDoc,
		Variables: map[string]any{"itemId": itemID},
	}
	var page struct {
		Items []model.ScoringJob `json:"items"`
	}
	if err := execute(ctx, s.gw, op, "listScoringJobByItemId", &page); err != nil {
		return nil, eris.Wrap(err, "store: find scoring job by item "+itemID)
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}

func (s *scoringJobStore) Update(ctx context.Context, id string, fields map[string]any) (*model.ScoringJob, error) {
	input := map[string]any{"id": id}
	for k, v := range fields {
		input[k] = v
	}
	op := gateway.Operation{
		Name:      "UpdateScoringJob",
		Document:  updateScoringJobDoc,
		Variables: map[string]any{"input": input},
	}
	var job model.ScoringJob
	if err := execute(ctx, s.gw, op, "updateScoringJob", &job); err != nil {
		return nil, eris.Wrap(err, "store: update scoring job "+id)
	}
	return &job, nil
}
