package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

const createScoreResultDoc = `mutation CreateScoreResult($input: CreateScoreResultInput!) {
  createScoreResult(input: $input) {
    id value itemId accountId scorecardId scoreId confidence metadata scoringJobId evaluationId createdAt
  }
}`

const batchCreateScoreResultsDoc = `mutation BatchCreateScoreResults($inputs: [CreateScoreResultInput!]!) {
  batchCreateScoreResults(inputs: $inputs) {
    id value itemId accountId scorecardId scoreId confidence metadata scoringJobId evaluationId createdAt
  }
}`

type scoreResultStore struct {
	gw gateway.Client
}

func (s *scoreResultStore) Create(ctx context.Context, item model.ScoreResult) (*model.ScoreResultRecord, error) {
	op := gateway.Operation{
		Name:      "CreateScoreResult",
		Document:  createScoreResultDoc,
		Variables: map[string]any{"input": scoreResultInput(item)},
	}
	var rec model.ScoreResultRecord
	if err := execute(ctx, s.gw, op, "createScoreResult", &rec); err != nil {
		return nil, eris.Wrap(err, "store: create score result")
	}
	return &rec, nil
}

func (s *scoreResultStore) BatchCreate(ctx context.Context, items []model.ScoreResult) ([]model.ScoreResultRecord, error) {
	if len(items) == 0 {
		return nil, nil
	}
	inputs := make([]map[string]any, len(items))
	for i, item := range items {
		inputs[i] = scoreResultInput(item)
	}
	op := gateway.Operation{
		Name:      "BatchCreateScoreResults",
		Document:  batchCreateScoreResultsDoc,
		Variables: map[string]any{"inputs": inputs},
	}
	var recs []model.ScoreResultRecord
	if err := execute(ctx, s.gw, op, "batchCreateScoreResults", &recs); err != nil {
		return nil, eris.Wrap(err, "store: batch create score results")
	}
	return recs, nil
}

// scoreResultInput maps a score result to operation variables, dropping the
// local-only dispatch configuration and unset optional fields.
func scoreResultInput(item model.ScoreResult) map[string]any {
	input := map[string]any{
		"value":       item.Value,
		"itemId":      item.ItemID,
		"accountId":   item.AccountID,
		"scorecardId": item.ScorecardID,
	}
	if item.ScoreID != "" {
		input["scoreId"] = item.ScoreID
	}
	if item.Confidence != nil {
		input["confidence"] = *item.Confidence
	}
	if len(item.Metadata) > 0 {
		input["metadata"] = item.Metadata
	}
	if item.ScoringJobID != "" {
		input["scoringJobId"] = item.ScoringJobID
	}
	if item.EvaluationID != "" {
		input["evaluationId"] = item.EvaluationID
	}
	return input
}
