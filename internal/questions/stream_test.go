package questions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// pagedFetcher serves pages[i] for page i+1 and fails the first failures
// calls.
type pagedFetcher struct {
	mu       sync.Mutex
	pages    [][]stackexchange.Question
	failures int
	requests []stackexchange.QuestionsRequest
}

func (f *pagedFetcher) Questions(_ context.Context, req stackexchange.QuestionsRequest) (stackexchange.QuestionsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return stackexchange.QuestionsPage{}, &stackexchange.APIError{Path: "questions", ID: stackexchange.ThrottleViolation}
	}
	idx := req.Page - 1
	if idx >= len(f.pages) {
		return stackexchange.QuestionsPage{}, nil
	}
	return stackexchange.QuestionsPage{Items: f.pages[idx], HasMore: idx < len(f.pages)-1}, nil
}

func makePage(start, n int) []stackexchange.Question {
	items := make([]stackexchange.Question, n)
	for i := range items {
		items[i] = stackexchange.Question{ID: int64(start + i), Title: fmt.Sprintf("q%d", start+i)}
	}
	return items
}

func newTestStream(f Fetcher) *Stream {
	ctrl := retry.NewController(retry.Config{}, zap.NewNop(),
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	return New(f, ctrl, 3, zap.NewNop())
}

func collect(s *Stream, site string, w Window) []int64 {
	var ids []int64
	for q := range s.Questions(context.Background(), site, w) {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestSinglePageIsOneRequest(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 3)}}
	s := newTestStream(f)

	assert.Equal(t, []int64{1, 2, 3}, collect(s, "law", Window{}))
	require.Len(t, f.requests, 1)
	assert.Equal(t, Stats{Site: "law", Pages: 1, Items: 3, State: StateExhausted}, s.Stats())
}

func TestTwoPagesAreTwoOrderedRequests(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 2), makePage(3, 2)}}
	s := newTestStream(f)

	assert.Equal(t, []int64{1, 2, 3, 4}, collect(s, "law", Window{}))
	require.Len(t, f.requests, 2)
	assert.Equal(t, 1, f.requests[0].Page)
	assert.Equal(t, 2, f.requests[1].Page)
}

func TestEmptyFirstPage(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{}
	s := newTestStream(f)

	assert.Empty(t, collect(s, "law", Window{}))
	assert.Len(t, f.requests, 1)
	assert.Equal(t, StateExhausted, s.Stats().State)
}

func TestEarlyBreakStopsPaging(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 2), makePage(3, 2)}}
	s := newTestStream(f)

	for q := range s.Questions(context.Background(), "law", Window{}) {
		if q.ID == 1 {
			break
		}
	}
	assert.Len(t, f.requests, 1)
	assert.Equal(t, StateStopped, s.Stats().State)
}

func TestFailedPageEndsStream(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 2)}, failures: 3}
	s := newTestStream(f)

	assert.Empty(t, collect(s, "law", Window{}))
	assert.Len(t, f.requests, 3)
	assert.Equal(t, StateFailed, s.Stats().State)
}

func TestThrottleRetriedWithinBudget(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 2)}, failures: 2}
	s := newTestStream(f)

	assert.Equal(t, []int64{1, 2}, collect(s, "law", Window{}))
	assert.Len(t, f.requests, 3)
}

func TestWindowConvertedOnceForEveryPage(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 1), makePage(2, 1), makePage(3, 1)}}
	s := newTestStream(f)

	from := stackexchange.Date{Year: 2021, Month: time.January, Day: 1}
	to := time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC)
	collect(s, "law", Window{From: from, To: to})

	require.Len(t, f.requests, 3)
	for _, req := range f.requests {
		require.NotNil(t, req.FromDate)
		require.NotNil(t, req.ToDate)
		assert.Equal(t, int64(1609459200), *req.FromDate)
		assert.Equal(t, to.Unix(), *req.ToDate)
		assert.Equal(t, "law", req.Site)
	}
}

func TestOpenWindowSendsNoBounds(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 1)}}
	s := newTestStream(f)
	collect(s, "law", Window{})

	require.Len(t, f.requests, 1)
	assert.Nil(t, f.requests[0].FromDate)
	assert.Nil(t, f.requests[0].ToDate)
}

func TestCanceledContextFails(t *testing.T) {
	t.Parallel()

	f := &pagedFetcher{pages: [][]stackexchange.Question{makePage(1, 1)}}
	s := newTestStream(f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n int
	for range s.Questions(ctx, "law", Window{}) {
		n++
	}
	assert.Zero(t, n)
	assert.Empty(t, f.requests)
	assert.Equal(t, StateFailed, s.Stats().State)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(99).String())
}
