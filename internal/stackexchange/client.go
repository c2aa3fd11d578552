package stackexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
)

// Default API filters. They are the named filters the harvester has always
// used: the questions filter includes body_markdown and answers.
const (
	DefaultQuestionsFilter = "!)Ehv2Yl*OhhLOkeHr5)YcUAgEK*(hc7aypu_0Y_ehVcszKs.-"
	DefaultSitesFilter     = "!SmNnbu6IrvLP5nC(hk"
	DefaultSitesPageSize   = 10000
)

// Config controls how the client talks to the API.
type Config struct {
	// BaseURL includes the API version and a trailing slash, e.g.
	// https://api.stackexchange.com/2.2/.
	BaseURL           string
	Key               string
	UserAgents        []string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	PageSize          int
	QuestionsFilter   string
	SitesFilter       string
}

// Client issues GET requests against the API with a rotating User-Agent and a
// token-bucket rate limit. It is safe for concurrent use, although the
// harvester gives every site run its own client.
type Client struct {
	http   *resty.Client
	cfg    Config
	agents *userAgentPool
	logger *zap.Logger

	mu        sync.Mutex
	notBefore time.Time
}

// New builds a Client from cfg.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuestionsFilter == "" {
		cfg.QuestionsFilter = DefaultQuestionsFilter
	}
	if cfg.SitesFilter == "" {
		cfg.SitesFilter = DefaultSitesFilter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("Accept", "application/json")

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if err := limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		return nil
	})

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		agents: newUserAgentPool(cfg.UserAgents),
		logger: logger,
	}
}

// Sites lists every site in the network.
func (c *Client) Sites(ctx context.Context) (SitesPage, error) {
	params := url.Values{}
	params.Set("pagesize", strconv.Itoa(DefaultSitesPageSize))
	params.Set("filter", c.cfg.SitesFilter)
	return fetch[Site](ctx, c, "sites", params)
}

// Questions fetches one page of questions, newest first.
func (c *Client) Questions(ctx context.Context, req QuestionsRequest) (QuestionsPage, error) {
	if req.Site == "" {
		return QuestionsPage{}, fmt.Errorf("questions: site is required")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("site", req.Site)
	params.Set("page", strconv.Itoa(page))
	params.Set("order", "desc")
	params.Set("sort", "creation")
	params.Set("filter", c.cfg.QuestionsFilter)
	if c.cfg.PageSize > 0 {
		params.Set("pagesize", strconv.Itoa(c.cfg.PageSize))
	}
	if req.FromDate != nil {
		params.Set("fromdate", strconv.FormatInt(*req.FromDate, 10))
	}
	if req.ToDate != nil {
		params.Set("todate", strconv.FormatInt(*req.ToDate, 10))
	}
	return fetch[Question](ctx, c, "questions", params)
}

// Question fetches a single question (with answers) by id.
func (c *Client) Question(ctx context.Context, site string, id int64) (QuestionsPage, error) {
	if site == "" {
		return QuestionsPage{}, fmt.Errorf("question: site is required")
	}
	params := url.Values{}
	params.Set("site", site)
	params.Set("filter", c.cfg.QuestionsFilter)
	return fetch[Question](ctx, c, "questions/"+strconv.FormatInt(id, 10), params)
}

func fetch[T any](ctx context.Context, c *Client, path string, params url.Values) (Wrapper[T], error) {
	var page Wrapper[T]
	if err := c.waitBackoff(ctx); err != nil {
		return page, fmt.Errorf("%s: %w", path, err)
	}
	if c.cfg.Key != "" {
		params.Set("key", c.cfg.Key)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.agents.Next()).
		SetQueryParamsFromValues(params).
		Get(path)
	endpoint := endpointLabel(path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return page, fmt.Errorf("%s: %w", path, ctxErr)
		}
		metrics.ObserveAPIRequest(endpoint, "transport_error")
		return page, &TransportError{Path: path, Err: err}
	}

	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		metrics.ObserveAPIRequest(endpoint, "decode_error")
		return page, &DecodeError{Path: path, Status: resp.StatusCode(), Err: err}
	}
	c.noteBackoff(page.Backoff)
	if page.QuotaMax > 0 {
		metrics.SetQuotaRemaining(page.QuotaRemaining)
	}

	switch {
	case page.ErrorID != 0:
		metrics.ObserveAPIRequest(endpoint, "api_error")
		return page, &APIError{
			Path:    path,
			Status:  resp.StatusCode(),
			ID:      page.ErrorID,
			Name:    page.ErrorName,
			Message: page.ErrorMessage,
		}
	case resp.IsError():
		metrics.ObserveAPIRequest(endpoint, "api_error")
		return page, &APIError{
			Path:    path,
			Status:  resp.StatusCode(),
			Name:    strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode()), " ", "_")),
			Message: "unexpected HTTP status",
		}
	}

	metrics.ObserveAPIRequest(endpoint, "ok")
	c.logger.Debug("api request completed",
		zap.String("path", path),
		zap.Int("items", len(page.Items)),
		zap.Bool("has_more", page.HasMore),
		zap.Int("quota_remaining", page.QuotaRemaining),
	)
	return page, nil
}

// noteBackoff records the API's request to pause before the next call.
func (c *Client) noteBackoff(seconds int) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	until := time.Now().Add(time.Duration(seconds) * time.Second)
	if until.After(c.notBefore) {
		c.notBefore = until
	}
	c.logger.Warn("api requested backoff", zap.Int("seconds", seconds))
}

func (c *Client) waitBackoff(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.notBefore)
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
