package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
)

// fakeResults records create calls and can be told to fail.
type fakeResults struct {
	mu       sync.Mutex
	singles  []model.ScoreResult
	batches  [][]model.ScoreResult
	failures int // fail this many BatchCreate calls, then succeed
}

func (f *fakeResults) Create(_ context.Context, item model.ScoreResult) (*model.ScoreResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, item)
	return &model.ScoreResultRecord{ID: "sr-single", ItemID: item.ItemID}, nil
}

func (f *fakeResults) BatchCreate(_ context.Context, items []model.ScoreResult) ([]model.ScoreResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("injected flush failure")
	}
	batch := make([]model.ScoreResult, len(items))
	copy(batch, items)
	f.batches = append(f.batches, batch)
	recs := make([]model.ScoreResultRecord, len(items))
	for i, item := range items {
		recs[i] = model.ScoreResultRecord{ID: fmt.Sprintf("sr-%s", item.ItemID), ItemID: item.ItemID}
	}
	return recs, nil
}

func (f *fakeResults) flushedItems() []model.ScoreResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.ScoreResult
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func (f *fakeResults) counts() (singles, batches, batched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		batched += len(b)
	}
	return len(f.singles), len(f.batches), batched
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func item(id string) model.ScoreResult {
	return model.ScoreResult{
		Value:       "Yes",
		ItemID:      id,
		AccountID:   "acct-1",
		ScorecardID: "card-1",
	}
}

func TestSubmit_FlushDeliversExactlyTheSubmittedSet(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))

	const n = 25
	for i := 0; i < n; i++ {
		d.Submit(item(fmt.Sprintf("item-%d", i)), WithBatchSize(10), WithBatchTimeout(60*time.Second))
	}
	d.Flush()

	flushed := fake.flushedItems()
	if len(flushed) != n {
		t.Fatalf("expected %d flushed items, got %d", n, len(flushed))
	}
	seen := make(map[string]bool, n)
	for _, it := range flushed {
		if seen[it.ItemID] {
			t.Errorf("duplicate item %s", it.ItemID)
		}
		seen[it.ItemID] = true
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("item-%d", i)
		if !seen[id] {
			t.Errorf("missing item %s", id)
		}
	}
}

func TestFlush_Idempotent(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))
	d.Submit(item("only"))

	d.Flush()
	_, firstBatches, _ := fake.counts()

	// Second call must be a no-op: no re-drain, no extra flush, no panic,
	// and it must return promptly.
	start := time.Now()
	d.Flush()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("second Flush took %v, expected immediate return", elapsed)
	}
	_, secondBatches, _ := fake.counts()
	if firstBatches != secondBatches {
		t.Errorf("second Flush issued more batch calls: %d != %d", firstBatches, secondBatches)
	}
}

func TestSubmit_Immediate_SingleCreateOnly(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))

	d.Submit(item("urgent"), Immediate())

	if !waitFor(t, 2*time.Second, func() bool {
		singles, _, _ := fake.counts()
		return singles == 1
	}) {
		t.Fatal("immediate item never sent")
	}
	d.Flush()

	singles, batchCalls, _ := fake.counts()
	if singles != 1 {
		t.Errorf("expected 1 single create, got %d", singles)
	}
	if batchCalls != 0 {
		t.Errorf("expected 0 batch creates, got %d", batchCalls)
	}
}

func TestWorker_SizeTriggerFlushesFullBatch(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(500*time.Millisecond))
	defer d.Flush()

	for i := 0; i < 10; i++ {
		d.Submit(item(fmt.Sprintf("full-%d", i)), WithBatchSize(10), WithBatchTimeout(60*time.Second))
	}

	// The tenth arrival reaches the size cap; the flush must not wait for
	// the poll interval or the batch timeout.
	if !waitFor(t, 2*time.Second, func() bool {
		_, _, batched := fake.counts()
		return batched == 10
	}) {
		t.Fatal("size-triggered flush never happened")
	}
}

func TestWorker_IdleFlushIgnoresSizeAndTimeout(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(30*time.Millisecond))
	defer d.Flush()

	// 25 items, none reaching batch size 10, with a 60s timeout nothing
	// would flush on its own. One idle poll interval must flush all of
	// them anyway.
	for i := 0; i < 25; i++ {
		d.Submit(item(fmt.Sprintf("idle-%d", i)), WithBatchSize(10), WithBatchTimeout(60*time.Second))
	}

	if !waitFor(t, 2*time.Second, func() bool {
		_, _, batched := fake.counts()
		return batched == 25
	}) {
		_, _, batched := fake.counts()
		t.Fatalf("idle flush delivered %d of 25 items", batched)
	}
}

func TestWorker_SurvivesFlushFailure(t *testing.T) {
	fake := &fakeResults{failures: 1}
	d := New(fake, WithPollInterval(20*time.Millisecond))

	// First batch hits the injected failure and is discarded.
	d.Submit(item("lost"), WithBatchSize(1))
	if !waitFor(t, 2*time.Second, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.failures == 0
	}) {
		t.Fatal("failing flush never attempted")
	}

	// The worker must still accept and flush later submissions.
	d.Submit(item("after-failure"), WithBatchSize(1))
	if !waitFor(t, 2*time.Second, func() bool {
		_, _, batched := fake.counts()
		return batched == 1
	}) {
		t.Fatal("worker did not recover after flush failure")
	}
	d.Flush()

	flushed := fake.flushedItems()
	if len(flushed) != 1 || flushed[0].ItemID != "after-failure" {
		t.Errorf("unexpected flushed items: %+v", flushed)
	}
}

func TestSubmit_DistinctConfigsBatchSeparately(t *testing.T) {
	fake := &fakeResults{}
	// Long poll interval so no idle flush slips in between submissions.
	d := New(fake, WithPollInterval(500*time.Millisecond))

	d.Submit(item("a1"), WithBatchSize(2), WithBatchTimeout(60*time.Second))
	d.Submit(item("a2"), WithBatchSize(2), WithBatchTimeout(60*time.Second))
	d.Submit(item("b1"), WithBatchSize(5), WithBatchTimeout(60*time.Second))
	d.Flush()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.batches) != 2 {
		t.Fatalf("expected 2 batch calls (one per configuration), got %d", len(fake.batches))
	}
	sizes := map[int]bool{len(fake.batches[0]): true, len(fake.batches[1]): true}
	if !sizes[1] || !sizes[2] {
		t.Errorf("expected batches of 1 and 2 items, got %d and %d",
			len(fake.batches[0]), len(fake.batches[1]))
	}
}

func TestSubmit_AfterFlushIsDroppedSilently(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))
	d.Flush()

	// Must not panic or block.
	d.Submit(item("late"))

	time.Sleep(50 * time.Millisecond)
	_, _, batched := fake.counts()
	if batched != 0 {
		t.Errorf("expected dropped item, got %d flushed", batched)
	}
}

func TestSubmit_DefaultsApplied(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))

	d.Submit(item("default"))
	d.Flush()

	flushed := fake.flushedItems()
	if len(flushed) != 1 {
		t.Fatalf("expected 1 flushed item, got %d", len(flushed))
	}
	if flushed[0].BatchSize != model.DefaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", model.DefaultBatchSize, flushed[0].BatchSize)
	}
	if flushed[0].BatchTimeout != model.DefaultBatchTimeout {
		t.Errorf("expected default batch timeout %v, got %v", model.DefaultBatchTimeout, flushed[0].BatchTimeout)
	}
}

func TestClose_FlushesOnce(t *testing.T) {
	fake := &fakeResults{}
	d := New(fake, WithPollInterval(20*time.Millisecond))
	d.Submit(item("closing"))

	if err := d.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, batched := fake.counts()
	if batched != 1 {
		t.Errorf("expected 1 flushed item on close, got %d", batched)
	}

	// Close after Flush is a no-op too.
	if err := d.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}
