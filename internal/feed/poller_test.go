package feed

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/pkg/types"
)

type fakeSource struct {
	mu      sync.Mutex
	issues  []*types.Issue
	queries []IssueQuery
	err     error
}

func (f *fakeSource) NewIssues(_ context.Context, q IssueQuery) ([]*types.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.Issue
	for _, issue := range f.issues {
		if issue.CreatedAt.Before(q.Since) || slices.Contains(q.Exclude, issue.ID) || len(out) >= q.Limit {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func (f *fakeSource) add(issue *types.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, issue)
}

func drain(out chan *types.Issue) []string {
	var ids []string
	for {
		select {
		case issue := <-out:
			ids = append(ids, issue.ID)
		default:
			return ids
		}
	}
}

func (f *fakeSource) Issue(_ context.Context, id string) (*types.Issue, error) {
	return nil, ErrNotFound
}

func TestPoller_AdvancesWatermark(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{issues: []*types.Issue{
		{ID: "a", CreatedAt: start.Add(time.Minute)},
		{ID: "b", CreatedAt: start.Add(2 * time.Minute)},
	}}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop(), WithLookback(0))

	out := make(chan *types.Issue, 10)
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"a", "b"}, drain(out))
	assert.Equal(t, start.Add(2*time.Minute), p.Watermark())

	// nothing new on the next poll
	p.poll(t.Context(), out)
	assert.Empty(t, out)
	assert.Equal(t, start.Add(2*time.Minute), src.queries[1].Since)
}

func TestPoller_SameTimestampDeliveredOnce(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	at := start.Add(time.Minute)
	src := &fakeSource{issues: []*types.Issue{{ID: "a", CreatedAt: at}}}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop(), WithLookback(0))

	out := make(chan *types.Issue, 10)
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"a"}, drain(out))

	// a second row committed with the watermark's exact created_at
	src.add(&types.Issue{ID: "b", CreatedAt: at})
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"b"}, drain(out))
	assert.ElementsMatch(t, []string{"a"}, src.queries[1].Exclude)

	p.poll(t.Context(), out)
	assert.Empty(t, drain(out))
}

func TestPoller_LateCommitWithinLookback(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{issues: []*types.Issue{{ID: "a", CreatedAt: start.Add(10 * time.Minute)}}}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop(), WithLookback(5*time.Minute))

	out := make(chan *types.Issue, 10)
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"a"}, drain(out))

	// committed after the first poll but stamped earlier than "a"
	src.add(&types.Issue{ID: "late", CreatedAt: start.Add(8 * time.Minute)})
	// too old for the window
	src.add(&types.Issue{ID: "stale", CreatedAt: start.Add(time.Minute)})

	p.poll(t.Context(), out)
	assert.Equal(t, []string{"late"}, drain(out))
	assert.Equal(t, start.Add(5*time.Minute), src.queries[1].Since)
	assert.Equal(t, start.Add(10*time.Minute), p.Watermark())
}

func TestPoller_LookbackNeverReadsBeforeStart(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{issues: []*types.Issue{
		{ID: "before", CreatedAt: start.Add(-time.Minute)},
		{ID: "after", CreatedAt: start.Add(time.Minute)},
	}}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop())

	out := make(chan *types.Issue, 10)
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"after"}, drain(out))
	assert.Equal(t, start, src.queries[0].Since)
}

func TestPoller_PrunesOutsideWindow(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{issues: []*types.Issue{
		{ID: "old", CreatedAt: start.Add(time.Minute)},
		{ID: "new", CreatedAt: start.Add(30 * time.Minute)},
	}}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop(), WithLookback(5*time.Minute))

	out := make(chan *types.Issue, 10)
	p.poll(t.Context(), out)
	assert.Equal(t, []string{"old", "new"}, drain(out))

	p.poll(t.Context(), out)
	assert.Empty(t, drain(out))
	assert.Equal(t, []string{"new"}, src.queries[1].Exclude)
}

func TestPoller_SourceErrorKeepsWatermark(t *testing.T) {
	start := time.Now()
	src := &fakeSource{err: errors.New("db down")}
	p := NewPoller(src, nil, time.Hour, start, zap.NewNop())

	out := make(chan *types.Issue, 1)
	p.poll(t.Context(), out)

	assert.Empty(t, out)
	assert.Equal(t, start, p.Watermark())
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	start := time.Now()
	src := &fakeSource{issues: []*types.Issue{{ID: "a", CreatedAt: start.Add(time.Second)}}}
	p := NewPoller(src, nil, 10*time.Millisecond, start, zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	out := make(chan *types.Issue, 10)
	done := make(chan struct{})
	go func() {
		p.Start(ctx, out)
		close(done)
	}()

	select {
	case issue := <-out:
		assert.Equal(t, "a", issue.ID)
	case <-time.After(time.Second):
		t.Fatal("no issue polled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
