// Package sites resolves Stack Exchange site metadata, caching the full
// directory on disk so repeated runs skip the /sites call.
package sites

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// CacheFileName is the directory cache file, stored under the output root.
const CacheFileName = "sites.json"

// DefaultAttempts is the retry budget for the /sites call.
const DefaultAttempts = 5

// ErrSiteNotFound is returned when no site matches a lookup.
var ErrSiteNotFound = errors.New("site not found")

// Fetcher lists every site in the network.
type Fetcher interface {
	Sites(ctx context.Context) (stackexchange.SitesPage, error)
}

// Config controls where the directory is cached and how hard it retries.
type Config struct {
	CachePath string
	Attempts  int
}

// Directory loads the site list once and answers lookups from memory.
type Directory struct {
	fetcher Fetcher
	retry   *retry.Controller
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	loaded  bool
	byName  map[string]stackexchange.Site
	ordered []stackexchange.Site
}

// NewDirectory builds a Directory. Nothing is fetched until the first lookup.
func NewDirectory(fetcher Fetcher, ctrl *retry.Controller, cfg Config, logger *zap.Logger) *Directory {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		fetcher: fetcher,
		retry:   ctrl,
		cfg:     cfg,
		logger:  logger,
	}
}

// Sites returns every known site keyed by API name. An empty map means the
// directory could not be loaded.
func (d *Directory) Sites(ctx context.Context) map[string]stackexchange.Site {
	d.load(ctx)
	return maps.Clone(d.byName)
}

// Ordered returns the sites in load order.
func (d *Directory) Ordered(ctx context.Context) []stackexchange.Site {
	d.load(ctx)
	return append([]stackexchange.Site(nil), d.ordered...)
}

// Site looks a site up by API name.
func (d *Directory) Site(ctx context.Context, apiName string) (stackexchange.Site, bool) {
	d.load(ctx)
	site, ok := d.byName[apiName]
	return site, ok
}

// URL returns the base URL for an API name.
func (d *Directory) URL(ctx context.Context, apiName string) (string, bool) {
	site, ok := d.Site(ctx, apiName)
	return site.URL, ok
}

// Name returns the display name for an API name.
func (d *Directory) Name(ctx context.Context, apiName string) (string, bool) {
	site, ok := d.Site(ctx, apiName)
	return site.Name, ok
}

// SiteByURL returns the first site, in load order, whose base URL is a prefix
// of rawURL.
func (d *Directory) SiteByURL(ctx context.Context, rawURL string) (stackexchange.Site, error) {
	d.load(ctx)
	for _, site := range d.ordered {
		if site.URL != "" && strings.HasPrefix(rawURL, site.URL) {
			return site, nil
		}
	}
	return stackexchange.Site{}, fmt.Errorf("%w: %s", ErrSiteNotFound, rawURL)
}

// Refresh discards the cache file and the in-memory copy. The next lookup
// fetches from the API.
func (d *Directory) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.byName = nil
	d.ordered = nil
	if d.cfg.CachePath == "" {
		return nil
	}
	if err := os.Remove(d.cfg.CachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove site cache: %w", err)
	}
	return nil
}

func (d *Directory) load(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return
	}
	d.loaded = true

	if d.cfg.CachePath != "" {
		ordered, err := readCache(d.cfg.CachePath)
		switch {
		case err == nil:
			d.logger.Debug("site directory loaded from cache",
				zap.String("path", d.cfg.CachePath),
				zap.Int("sites", len(ordered)),
			)
			d.set(ordered)
			return
		case errors.Is(err, os.ErrNotExist):
		default:
			d.logger.Warn("ignoring unreadable site cache", zap.String("path", d.cfg.CachePath), zap.Error(err))
		}
	}

	page, ok := retry.Do(ctx, d.retry, "sites", d.cfg.Attempts, d.fetcher.Sites)
	if !ok {
		d.logger.Error("could not load site directory")
		d.set(nil)
		return
	}
	d.set(page.Items)
	d.logger.Info("site directory fetched", zap.Int("sites", len(d.ordered)))

	if d.cfg.CachePath == "" {
		return
	}
	if err := writeCache(d.cfg.CachePath, d.ordered); err != nil {
		d.logger.Warn("could not write site cache", zap.String("path", d.cfg.CachePath), zap.Error(err))
	}
}

// set indexes sites; a repeated API name keeps its first position and the
// last value seen.
func (d *Directory) set(items []stackexchange.Site) {
	d.byName = make(map[string]stackexchange.Site, len(items))
	d.ordered = make([]stackexchange.Site, 0, len(items))
	index := make(map[string]int, len(items))
	for _, site := range items {
		if i, dup := index[site.APIName]; dup {
			d.ordered[i] = site
		} else {
			index[site.APIName] = len(d.ordered)
			d.ordered = append(d.ordered, site)
		}
		d.byName[site.APIName] = site
	}
}
