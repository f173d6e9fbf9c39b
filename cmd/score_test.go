package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/plexus-dashboard/internal/dispatch"
	"github.com/AnthusAI/plexus-dashboard/internal/model"
)

// recordingResults counts the score results that reach the remote store.
type recordingResults struct {
	mu    sync.Mutex
	items []model.ScoreResult
}

func (r *recordingResults) Create(_ context.Context, item model.ScoreResult) (*model.ScoreResultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return &model.ScoreResultRecord{ItemID: item.ItemID, Value: item.Value}, nil
}

func (r *recordingResults) BatchCreate(_ context.Context, items []model.ScoreResult) ([]model.ScoreResultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
	out := make([]model.ScoreResultRecord, len(items))
	for i, it := range items {
		out[i] = model.ScoreResultRecord{ItemID: it.ItemID, Value: it.Value}
	}
	return out, nil
}

func (r *recordingResults) received() []model.ScoreResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ScoreResult(nil), r.items...)
}

func resetScoreLogFlags(t *testing.T) {
	t.Helper()
	origImmediate, origSize, origTimeout := scoreLogImmediate, scoreLogBatchSize, scoreLogTimeout
	t.Cleanup(func() {
		scoreLogImmediate, scoreLogBatchSize, scoreLogTimeout = origImmediate, origSize, origTimeout
	})
	scoreLogImmediate = false
	scoreLogBatchSize = 0
	scoreLogTimeout = 0
}

func TestSubmitScoreResults(t *testing.T) {
	resetScoreLogFlags(t)

	results := &recordingResults{}
	d := dispatch.New(results, dispatch.WithPollInterval(10*time.Millisecond))

	input := strings.Join([]string{
		`{"value":"Yes","itemId":"item-1","accountId":"acct-1","scorecardId":"card-1","scoreId":"score-1"}`,
		`{"value":"No","itemId":"item-2","accountId":"acct-1","scorecardId":"card-1","scoreId":"score-1"}`,
	}, "\n")

	submitted, skipped, err := submitScoreResults(strings.NewReader(input), d)
	require.NoError(t, err)
	assert.Equal(t, 2, submitted)
	assert.Equal(t, 0, skipped)

	d.Flush()

	received := results.received()
	require.Len(t, received, 2)
	assert.Equal(t, "item-1", received[0].ItemID)
	assert.Equal(t, "Yes", received[0].Value)
}

func TestSubmitScoreResults_SkipsMalformedLines(t *testing.T) {
	resetScoreLogFlags(t)

	results := &recordingResults{}
	d := dispatch.New(results, dispatch.WithPollInterval(10*time.Millisecond))

	input := strings.Join([]string{
		`{"value":"Yes","itemId":"item-1","accountId":"acct-1","scorecardId":"card-1"}`,
		`this is not json`,
		``,
		`{"value":"No","itemId":"item-2","accountId":"acct-1","scorecardId":"card-1"}`,
	}, "\n")

	submitted, skipped, err := submitScoreResults(strings.NewReader(input), d)
	require.NoError(t, err)
	assert.Equal(t, 2, submitted)
	assert.Equal(t, 1, skipped)

	d.Flush()
	assert.Len(t, results.received(), 2)
}

func TestSubmitScoreResults_FlagOverrides(t *testing.T) {
	resetScoreLogFlags(t)
	scoreLogBatchSize = 3
	scoreLogTimeout = 30 * time.Second

	results := &recordingResults{}
	d := dispatch.New(results, dispatch.WithPollInterval(time.Hour))

	var lines []string
	for i := 0; i < 3; i++ {
		lines = append(lines, `{"value":"Yes","itemId":"i","accountId":"a","scorecardId":"c"}`)
	}
	submitted, _, err := submitScoreResults(strings.NewReader(strings.Join(lines, "\n")), d)
	require.NoError(t, err)
	assert.Equal(t, 3, submitted)

	// The size trigger flushes without help from the poll loop.
	require.Eventually(t, func() bool {
		return len(results.received()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	d.Flush()
}
