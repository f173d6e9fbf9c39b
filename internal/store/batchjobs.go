package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

const batchJobFields = `id accountId scorecardId modelProvider modelName status totalRequests scoringJobCountCache createdAt updatedAt`

const createBatchJobDoc = `mutation CreateBatchJob($input: CreateBatchJobInput!) {
  createBatchJob(input: $input) { ` + batchJobFields + ` }
}`

const getBatchJobDoc = `query GetBatchJob($id: ID!) {
  getBatchJob(id: $id) { ` + batchJobFields + ` }
}`

const updateBatchJobDoc = `mutation UpdateBatchJob($input: UpdateBatchJobInput!) {
  updateBatchJob(input: $input) { ` + batchJobFields + ` }
}`

const listOpenBatchJobsDoc = `query ListOpenBatchJobs($accountId: String!, $scorecardId: String!, $modelProvider: String!, $modelName: String!) {
  listBatchJobByScope(accountId: $accountId, scorecardId: $scorecardId, modelProvider: $modelProvider, modelName: $modelName, status: "OPEN") {
    items { ` + batchJobFields + ` }
  }
}`

type batchJobStore struct {
	gw gateway.Client
}

func (s *batchJobStore) Create(ctx context.Context, job model.BatchJob) (*model.BatchJob, error) {
	input := map[string]any{
		"accountId":            job.AccountID,
		"scorecardId":          job.ScorecardID,
		"modelProvider":        job.ModelProvider,
		"modelName":            job.ModelName,
		"status":               string(job.Status),
		"scoringJobCountCache": job.ScoringJobCountCache,
	}
	if job.TotalRequests != nil {
		input["totalRequests"] = *job.TotalRequests
	}

	op := gateway.Operation{
		Name:      "CreateBatchJob",
		Document:  createBatchJobDoc,
		Variables: map[string]any{"input": input},
	}
	var created model.BatchJob
	if err := execute(ctx, s.gw, op, "createBatchJob", &created); err != nil {
		return nil, eris.Wrap(err, "store: create batch job")
	}
	return &created, nil
}

func (s *batchJobStore) GetByID(ctx context.Context, id string) (*model.BatchJob, error) {
	op := gateway.Operation{
		Name:      "GetBatchJob",
		Document:  getBatchJobDoc,
		Variables: map[string]any{"id": id},
	}
	var job model.BatchJob
	if err := execute(ctx, s.gw, op, "getBatchJob", &job); err != nil {
		return nil, eris.Wrap(err, "store: get batch job "+id)
	}
	return &job, nil
}

func (s *batchJobStore) Update(ctx context.Context, id string, fields map[string]any) (*model.BatchJob, error) {
	input := map[string]any{"id": id}
	for k, v := range fields {
		input[k] = v
	}
	op := gateway.Operation{
		Name:      "UpdateBatchJob",
		Document:  updateBatchJobDoc,
		Variables: map[string]any{"input": input},
	}
	var job model.BatchJob
	if err := execute(ctx, s.gw, op, "updateBatchJob", &job); err != nil {
		return nil, eris.Wrap(err, "store: update batch job "+id)
	}
	return &job, nil
}

func (s *batchJobStore) ListOpen(ctx context.Context, scope model.BatchScope) ([]model.BatchJob, error) {
	op := gateway.Operation{
		Name:     "ListOpenBatchJobs",
		Document: listOpenBatchJobsDoc,
		Variables: map[string]any{
			"accountId":     scope.AccountID,
			"scorecardId":   scope.ScorecardID,
			"modelProvider": scope.ModelProvider,
			"modelName":     scope.ModelName,
		},
	}
	var page struct {
		Items []model.BatchJob `json:"items"`
	}
	if err := execute(ctx, s.gw, op, "listBatchJobByScope", &page); err != nil {
		return nil, eris.Wrap(err, "store: list open batch jobs")
	}
	return page.Items, nil
}
