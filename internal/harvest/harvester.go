package harvest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/stackexchange-crawler/internal/hash/sha256"
	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
	"github.com/JakeFAU/stackexchange-crawler/internal/normalize"
	"github.com/JakeFAU/stackexchange-crawler/internal/notify"
	"github.com/JakeFAU/stackexchange-crawler/internal/questions"
	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/sink"
	"github.com/JakeFAU/stackexchange-crawler/internal/sitelist"
	"github.com/JakeFAU/stackexchange-crawler/internal/sites"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
	"github.com/JakeFAU/stackexchange-crawler/internal/storage"
	"github.com/JakeFAU/stackexchange-crawler/internal/telemetry"
)

// Summary reports one site run.
type Summary struct {
	Site           string
	RunID          string
	Written        int
	Skipped        int
	UploadFailures int
	NotifyFailures int
	Pages          int
	State          questions.State
	Duration       time.Duration
}

// Harvester owns one component graph: client, retry controller, site
// directory, stream, normalizer and sink. It processes one site at a time.
type Harvester struct {
	settings   Settings
	client     *stackexchange.Client
	retry      *retry.Controller
	sites      *sites.Directory
	stream     *questions.Stream
	normalizer *normalize.Normalizer
	sink       *sink.FileSystemSink
	uploader   *storage.Uploader
	notifier   *notify.Notifier
	tracer     trace.Tracer
	logger     *zap.Logger

	outMu sync.Mutex
}

// Build wires a Harvester from settings.
func Build(settings Settings) (*Harvester, error) {
	s, err := settings.withDefaults()
	if err != nil {
		return nil, err
	}
	logger := s.Logger.Named("harvest")
	if s.RunID != "" {
		logger = logger.With(zap.String("run_id", s.RunID))
	}

	fsSink, err := sink.NewFileSystemSink(s.OutputDir, s.Source, logger.Named("sink"))
	if err != nil {
		return nil, err
	}
	client := stackexchange.New(s.Client, logger.Named("client"))
	ctrl := retry.NewController(s.Retry, logger.Named("retry"), s.RetryOptions...)
	dir := sites.NewDirectory(client, ctrl, sites.Config{
		CachePath: filepath.Join(s.OutputDir, sites.CacheFileName),
		Attempts:  s.SitesAttempts,
	}, logger.Named("sites"))

	return &Harvester{
		settings:   s,
		client:     client,
		retry:      ctrl,
		sites:      dir,
		stream:     questions.New(client, ctrl, s.QuestionsAttempts, logger.Named("questions")),
		normalizer: normalize.New(dir, normalize.WithSource(s.Source), normalize.WithLocation(s.Location)),
		sink:       fsSink,
		uploader:   storage.NewUploader(s.Provider, s.StoragePrefix, logger.Named("upload")),
		notifier:   s.Notifier,
		tracer:     telemetry.Tracer(s.TracerProvider),
		logger:     logger,
	}, nil
}

// Directory exposes the harvester's site directory.
func (h *Harvester) Directory() *sites.Directory {
	return h.sites
}

// RunSite builds an independent Harvester from settings and processes one
// site with it. Parallel runs use it so no component is shared.
func RunSite(ctx context.Context, settings Settings, site string) (Summary, error) {
	h, err := Build(settings)
	if err != nil {
		return Summary{Site: site, RunID: settings.RunID}, err
	}
	return h.ProcessSite(ctx, site)
}

// ProcessSite harvests every question of site into the output directory.
// Upload and notification failures are logged and counted, never returned.
func (h *Harvester) ProcessSite(ctx context.Context, site string) (summary Summary, err error) {
	ctx, span := h.tracer.Start(ctx, "harvest.site", trace.WithAttributes(
		attribute.String("site", site),
		attribute.String("run_id", h.settings.RunID),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("records.written", summary.Written),
			attribute.Int("records.skipped", summary.Skipped),
			attribute.Int("pages", summary.Pages),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	summary = Summary{Site: site, RunID: h.settings.RunID}
	log := h.logger.With(zap.String("site", site))

	metrics.IncActiveSites()
	defer metrics.DecActiveSites()

	if err := h.sink.EnsureSiteDir(site); err != nil {
		return summary, err
	}
	log.Info("site run started")

	var runErr error
	for q := range h.stream.Questions(ctx, site, h.settings.Window) {
		rec, err := h.normalizer.Normalize(ctx, q, site)
		if err != nil {
			if h.settings.OnUnresolved == OnUnresolvedSkip && errors.Is(err, sites.ErrSiteNotFound) {
				log.Warn("skipping record with unresolved site",
					zap.Int64("question_id", q.ID),
					zap.String("link", q.Link),
					zap.Error(err),
				)
				metrics.ObserveRecord(site, "skipped")
				summary.Skipped++
				continue
			}
			runErr = fmt.Errorf("site %s: %w", site, err)
			break
		}

		path, data, err := h.sink.Write(ctx, site, q.ID, rec)
		if err != nil {
			metrics.ObserveRecord(site, "failed")
			runErr = fmt.Errorf("site %s: %w", site, err)
			break
		}
		metrics.ObserveRecord(site, "written")
		summary.Written++

		object, err := h.uploader.UploadFile(ctx, path, data)
		if err != nil {
			log.Warn("upload failed", zap.String("path", path), zap.Error(err))
			summary.UploadFailures++
			object = ""
		}

		if err := h.notifier.RecordWritten(ctx, notify.Event{
			RunID:      h.settings.RunID,
			Site:       site,
			QuestionID: q.ID,
			ExternalID: rec.ExternalID,
			Path:       path,
			Object:     object,
			SHA256:     sha256.Sum(data),
		}); err != nil {
			log.Warn("notification failed", zap.Int64("question_id", q.ID), zap.Error(err))
			summary.NotifyFailures++
		}
	}

	stats := h.stream.Stats()
	summary.Pages = stats.Pages
	summary.State = stats.State
	summary.Duration = time.Since(start)

	fields := []zap.Field{
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("pages", summary.Pages),
		zap.Stringer("state", summary.State),
		zap.Duration("duration", summary.Duration),
	}
	if runErr != nil {
		log.Error("site run aborted", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	log.Info("site run finished", fields...)
	return summary, nil
}

// ProcessSites harvests each site. With workers <= 1 sites run one after
// another on this Harvester; otherwise up to workers sites run at once, each
// through RunSite. The directory is loaded first so parallel runs find the
// cache file instead of fetching it again. Errors from individual sites are
// joined; one failing site does not stop the others.
func (h *Harvester) ProcessSites(ctx context.Context, siteNames []string, workers int) ([]Summary, error) {
	summaries := make([]Summary, len(siteNames))
	errs := make([]error, len(siteNames))

	if workers <= 1 {
		for i, site := range siteNames {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				break
			}
			summaries[i], errs[i] = h.ProcessSite(ctx, site)
			h.reportProcessed(ctx, site)
		}
		return summaries, errors.Join(errs...)
	}

	h.sites.Sites(ctx)

	var g errgroup.Group
	g.SetLimit(workers)
	for i, site := range siteNames {
		g.Go(func() error {
			summaries[i], errs[i] = RunSite(ctx, h.settings, site)
			h.reportProcessed(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	return summaries, errors.Join(errs...)
}

func (h *Harvester) reportProcessed(ctx context.Context, site string) {
	name, _ := h.sites.Name(ctx, site)
	url, _ := h.sites.URL(ctx, site)
	h.outMu.Lock()
	defer h.outMu.Unlock()
	_, _ = fmt.Fprintf(h.settings.Out, "%s (%s) processed\n", name, url)
}

// ResolveSiteList maps site-list entries to API names by URL. Entries that
// match no site are logged and dropped; duplicates are kept once.
func (h *Harvester) ResolveSiteList(ctx context.Context, entries []sitelist.Entry) []string {
	seen := make(map[string]bool, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		site, err := h.sites.SiteByURL(ctx, entry.URL)
		if err != nil && strings.HasPrefix(entry.URL, "http://") {
			site, err = h.sites.SiteByURL(ctx, "https://"+strings.TrimPrefix(entry.URL, "http://"))
		}
		if err != nil {
			h.logger.Warn("site list entry not found",
				zap.String("name", entry.Name),
				zap.String("url", entry.URL),
				zap.Error(err),
			)
			continue
		}
		if seen[site.APIName] {
			continue
		}
		seen[site.APIName] = true
		names = append(names, site.APIName)
	}
	return names
}

// Question fetches a single question and normalizes it.
func (h *Harvester) Question(ctx context.Context, site string, id int64) (normalize.OutputRecord, error) {
	page, ok := retry.Do(ctx, h.retry, "question", h.questionsAttempts(), func(ctx context.Context) (stackexchange.QuestionsPage, error) {
		return h.client.Question(ctx, site, id)
	})
	if !ok {
		return normalize.OutputRecord{}, fmt.Errorf("question %s/%d: no result after retries", site, id)
	}
	if len(page.Items) == 0 {
		return normalize.OutputRecord{}, fmt.Errorf("question %s/%d: not found", site, id)
	}
	return h.normalizer.Normalize(ctx, page.Items[0], site)
}

func (h *Harvester) questionsAttempts() int {
	if h.settings.QuestionsAttempts > 0 {
		return h.settings.QuestionsAttempts
	}
	return questions.DefaultAttempts
}
