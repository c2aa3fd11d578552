// Package questions pages through a site's questions, newest first, and hands
// them out one at a time.
package questions

import (
	"context"
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// DefaultAttempts is the retry budget for each questions page.
const DefaultAttempts = 10

// State is where a stream is in its lifecycle.
type State int

// Stream states.
const (
	StateIdle State = iota
	StateFetching
	StateYielding
	// StateExhausted means the upstream reported no further pages.
	StateExhausted
	// StateFailed means a page could not be fetched within the retry budget.
	StateFailed
	// StateStopped means the consumer stopped iterating early.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateYielding:
		return "yielding"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Fetcher retrieves one page of questions.
type Fetcher interface {
	Questions(ctx context.Context, req stackexchange.QuestionsRequest) (stackexchange.QuestionsPage, error)
}

// Window bounds the creation date of the questions returned. Each bound is
// anything stackexchange.ToEpoch accepts; nil leaves it open.
type Window struct {
	From any
	To   any
}

// Stats describes the most recent iteration.
type Stats struct {
	Site  string
	Pages int
	Items int
	State State
}

// Stream produces questions lazily. Each call to Questions starts over at
// page one.
type Stream struct {
	fetcher  Fetcher
	retry    *retry.Controller
	attempts int
	logger   *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a Stream. attempts <= 0 selects DefaultAttempts.
func New(fetcher Fetcher, ctrl *retry.Controller, attempts int, logger *zap.Logger) *Stream {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{fetcher: fetcher, retry: ctrl, attempts: attempts, logger: logger}
}

// Stats returns a snapshot of the current or last iteration.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Stream) update(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Questions returns the site's questions within window, page by page. Pages
// are requested only as the consumer asks for more items; breaking out of
// the loop stops paging.
func (s *Stream) Questions(ctx context.Context, site string, window Window) iter.Seq[stackexchange.Question] {
	return func(yield func(stackexchange.Question) bool) {
		from := epochBound(window.From)
		to := epochBound(window.To)
		log := s.logger.With(zap.String("site", site))

		s.update(func(st *Stats) { *st = Stats{Site: site, State: StateFetching} })

		for page := 1; ; page++ {
			s.update(func(st *Stats) { st.State = StateFetching })
			req := stackexchange.QuestionsRequest{Site: site, Page: page, FromDate: from, ToDate: to}
			resp, ok := retry.Do(ctx, s.retry, "questions", s.attempts, func(ctx context.Context) (stackexchange.QuestionsPage, error) {
				return s.fetcher.Questions(ctx, req)
			})
			if !ok {
				log.Error("could not fetch questions page", zap.Int("page", page))
				s.update(func(st *Stats) { st.State = StateFailed })
				return
			}
			metrics.ObservePage(site)
			s.update(func(st *Stats) { st.Pages++ })

			if len(resp.Items) == 0 {
				if page == 1 {
					log.Info("no items found")
				}
				s.update(func(st *Stats) { st.State = StateExhausted })
				return
			}
			log.Debug("questions page fetched",
				zap.Int("page", page),
				zap.Int("items", len(resp.Items)),
				zap.Bool("has_more", resp.HasMore),
			)

			s.update(func(st *Stats) { st.State = StateYielding })
			for _, q := range resp.Items {
				s.update(func(st *Stats) { st.Items++ })
				if !yield(q) {
					s.update(func(st *Stats) { st.State = StateStopped })
					return
				}
			}
			if !resp.HasMore {
				s.update(func(st *Stats) { st.State = StateExhausted })
				return
			}
		}
	}
}

func epochBound(v any) *int64 {
	epoch, ok := stackexchange.ToEpoch(v)
	if !ok {
		return nil
	}
	return &epoch
}
