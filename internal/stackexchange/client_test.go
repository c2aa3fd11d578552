package stackexchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	path      string
	query     url.Values
	userAgent string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, recorded{path: r.URL.Path, query: r.URL.Query(), userAgent: r.UserAgent()})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &reqs
}

func newTestClient(baseURL string, agents ...string) *Client {
	return New(Config{
		BaseURL:    baseURL + "/2.2",
		Key:        "secret",
		UserAgents: agents,
		PageSize:   50,
	}, zap.NewNop())
}

func TestQuestionsSendsQueryParameters(t *testing.T) {
	t.Parallel()

	ts, reqs := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"question_id":7,"title":"T","link":"https://law.stackexchange.com/q/7","is_answered":false}],"has_more":true,"quota_max":300,"quota_remaining":299}`))
	})
	client := newTestClient(ts.URL)

	from, to := int64(1600000000), int64(1700000000)
	page, err := client.Questions(context.Background(), QuestionsRequest{Site: "law", Page: 2, FromDate: &from, ToDate: &to})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.True(t, page.HasMore)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/2.2/questions", got.path)
	assert.Equal(t, "law", got.query.Get("site"))
	assert.Equal(t, "2", got.query.Get("page"))
	assert.Equal(t, "desc", got.query.Get("order"))
	assert.Equal(t, "creation", got.query.Get("sort"))
	assert.Equal(t, DefaultQuestionsFilter, got.query.Get("filter"))
	assert.Equal(t, "50", got.query.Get("pagesize"))
	assert.Equal(t, "1600000000", got.query.Get("fromdate"))
	assert.Equal(t, "1700000000", got.query.Get("todate"))
	assert.Equal(t, "secret", got.query.Get("key"))
}

func TestQuestionsRequiresSite(t *testing.T) {
	t.Parallel()

	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Questions(context.Background(), QuestionsRequest{})
	require.Error(t, err)
}

func TestSitesAndSingleQuestion(t *testing.T) {
	t.Parallel()

	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2.2/sites":
			_, _ = w.Write([]byte(`{"items":[{"api_site_parameter":"law","name":"Law","site_url":"https://law.stackexchange.com","site_state":"normal","site_type":"main_site","audience":"legal professionals"}],"has_more":false}`))
		case "/2.2/questions/42":
			_, _ = w.Write([]byte(`{"items":[{"question_id":42,"title":"Answer"}],"has_more":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := newTestClient(ts.URL)

	sites, err := client.Sites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites.Items, 1)
	assert.Equal(t, Site{APIName: "law", Name: "Law", URL: "https://law.stackexchange.com", State: SiteStateNormal, Type: SiteTypeMain}, sites.Items[0].WithoutRaw())
	assert.Contains(t, string(sites.Items[0].Raw), `"audience":"legal professionals"`)

	q, err := client.Question(context.Background(), "law", 42)
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.Equal(t, "Answer", q.Items[0].Title)

	require.Len(t, *reqs, 2)
	assert.Equal(t, "10000", (*reqs)[0].query.Get("pagesize"))
	assert.Equal(t, DefaultSitesFilter, (*reqs)[0].query.Get("filter"))
	assert.Equal(t, "law", (*reqs)[1].query.Get("site"))
}

func TestUserAgentRotates(t *testing.T) {
	t.Parallel()

	ts, reqs := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[],"has_more":false}`))
	})
	client := newTestClient(ts.URL, "agent-a", "agent-b")

	for range 3 {
		_, err := client.Sites(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, *reqs, 3)
	assert.Equal(t, "agent-a", (*reqs)[0].userAgent)
	assert.Equal(t, "agent-b", (*reqs)[1].userAgent)
	assert.Equal(t, "agent-a", (*reqs)[2].userAgent)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		check     func(t *testing.T, err error)
		transient bool
	}{
		{
			name:   "throttle violation",
			status: http.StatusBadRequest,
			body:   `{"error_id":502,"error_name":"throttle_violation","error_message":"too many requests from this IP"}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, apiErr.IsThrottle())
				assert.True(t, IsThrottle(err))
			},
			transient: true,
		},
		{
			name:   "other api error",
			status: http.StatusBadRequest,
			body:   `{"error_id":400,"error_name":"bad_parameter","error_message":"site is required"}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 400, apiErr.ID)
				assert.False(t, IsThrottle(err))
			},
			transient: true,
		},
		{
			name:   "html from proxy",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var decodeErr *DecodeError
				require.ErrorAs(t, err, &decodeErr)
				assert.Equal(t, http.StatusBadGateway, decodeErr.Status)
			},
			transient: true,
		},
		{
			name:   "json error status without error id",
			status: http.StatusServiceUnavailable,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
			},
			transient: true,
		},
		{
			name:   "gateway status is not a throttle",
			status: http.StatusBadGateway,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadGateway, apiErr.Status)
				assert.Zero(t, apiErr.ID)
				assert.Equal(t, "bad_gateway", apiErr.Name)
				assert.False(t, IsThrottle(err))
			},
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(ts.URL)

			_, err := client.Questions(context.Background(), QuestionsRequest{Site: "law", Page: 1})
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := ts.URL
	ts.Close()

	client := newTestClient(base)
	_, err := client.Sites(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, IsTransient(err))
}

func TestCanceledContextIsFatal(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	client := newTestClient(ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Sites(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTransient(err))
}

func newBackoffServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"items":[],"backoff":1}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	return ts, &calls
}

func TestBackoffDelaysNextRequest(t *testing.T) {
	t.Parallel()

	ts, calls := newBackoffServer(t)
	client := newTestClient(ts.URL)

	_, err := client.Sites(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Sites(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBackoffWaitStopsOnCancel(t *testing.T) {
	t.Parallel()

	ts, calls := newBackoffServer(t)
	client := newTestClient(ts.URL)

	_, err := client.Sites(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = client.Sites(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEndpointLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "questions", endpointLabel("questions/42"))
	assert.Equal(t, "sites", endpointLabel("sites"))
}
