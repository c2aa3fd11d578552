package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// SiteResolver is the part of the site directory the normalizer needs.
type SiteResolver interface {
	Name(ctx context.Context, apiName string) (string, bool)
	SiteByURL(ctx context.Context, rawURL string) (stackexchange.Site, error)
}

// Normalizer converts questions to OutputRecords.
type Normalizer struct {
	sites    SiteResolver
	source   string
	location *time.Location
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithSource overrides DefaultSource.
func WithSource(source string) Option {
	return func(n *Normalizer) {
		if source != "" {
			n.source = source
		}
	}
}

// WithLocation sets the zone record dates are rendered in. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// New builds a Normalizer backed by sites.
func New(sites SiteResolver, opts ...Option) *Normalizer {
	n := &Normalizer{sites: sites, source: DefaultSource, location: time.UTC}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the record for q. siteHint is the API name of the site q
// came from; when empty or unknown the forum is resolved from q.Link. The
// returned error wraps sites.ErrSiteNotFound when neither resolves.
func (n *Normalizer) Normalize(ctx context.Context, q stackexchange.Question, siteHint string) (OutputRecord, error) {
	forum, err := n.forumName(ctx, q, siteHint)
	if err != nil {
		return OutputRecord{}, err
	}
	return OutputRecord{
		ExternalID: ExternalID(n.source, forum, q.Title),
		Abstract:   q.Title,
		Date:       FormatDate(q.CreationDate, n.location),
		Title:      q.Title,
		URL:        q.Link,
		Words:      Words(q),
		Meta:       map[string]ForumMeta{n.source: {Forum: forum}},
	}, nil
}

func (n *Normalizer) forumName(ctx context.Context, q stackexchange.Question, siteHint string) (string, error) {
	if siteHint != "" {
		if name, ok := n.sites.Name(ctx, siteHint); ok {
			return name, nil
		}
	}
	site, err := n.sites.SiteByURL(ctx, q.Link)
	if err != nil {
		return "", fmt.Errorf("question %d: %w", q.ID, err)
	}
	return site.Name, nil
}

// Words joins the question body with its answers' bodies. Answers count only
// when the question is marked answered.
func Words(q stackexchange.Question) string {
	if !q.IsAnswered || len(q.Answers) == 0 {
		return q.BodyMarkdown
	}
	var b strings.Builder
	b.WriteString(q.BodyMarkdown)
	for _, a := range q.Answers {
		b.WriteByte(' ')
		b.WriteString(a.BodyMarkdown)
	}
	return b.String()
}
