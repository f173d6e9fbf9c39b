package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

// defaultLinkPageSize is how many link records one count page fetches.
const defaultLinkPageSize = 100

const createLinkDoc = `mutation CreateBatchJobScoringJobLink($input: CreateBatchJobScoringJobLinkInput!) {
  createBatchJobScoringJob(input: $input) { batchJobId scoringJobId createdAt }
}`

const listLinksForBatchDoc = `query ListBatchJobScoringJobs($batchJobId: String!, $limit: Int!, $nextToken: String) {
  listBatchJobScoringJobByBatchJobId(batchJobId: $batchJobId, limit: $limit, nextToken: $nextToken) {
    items { batchJobId scoringJobId createdAt }
    nextToken
  }
}`

type linkStore struct {
	gw       gateway.Client
	pageSize int
}

func (s *linkStore) Create(ctx context.Context, batchJobID, scoringJobID string) (*model.BatchJobLink, error) {
	op := gateway.Operation{
		Name:     "CreateBatchJobScoringJobLink",
		Document: createLinkDoc,
		Variables: map[string]any{"input": map[string]any{
			"batchJobId":   batchJobID,
			"scoringJobId": scoringJobID,
		}},
	}
	var link model.BatchJobLink
	if err := execute(ctx, s.gw, op, "createBatchJobScoringJob", &link); err != nil {
		return nil, eris.Wrap(err, "store: create batch job link")
	}
	return &link, nil
}

// CountForBatch pages through every link for the batch job and returns the
// true membership count. This is the authoritative number; the batch job's
// cached count is derived from it.
func (s *linkStore) CountForBatch(ctx context.Context, batchJobID string) (int, error) {
	count := 0
	var nextToken string
	for {
		vars := map[string]any{
			"batchJobId": batchJobID,
			"limit":      s.pageSize,
		}
		if nextToken != "" {
			vars["nextToken"] = nextToken
		}
		op := gateway.Operation{
			Name:      "ListBatchJobScoringJobs",
			Document:  listLinksForBatchDoc,
			Variables: vars,
		}
		var page struct {
			Items     []model.BatchJobLink `json:"items"`
			NextToken string               `json:"nextToken"`
		}
		if err := execute(ctx, s.gw, op, "listBatchJobScoringJobByBatchJobId", &page); err != nil {
			return 0, eris.Wrap(err, "store: count links for batch "+batchJobID)
		}
		count += len(page.Items)
		if page.NextToken == "" {
			return count, nil
		}
		nextToken = page.NextToken
	}
}
