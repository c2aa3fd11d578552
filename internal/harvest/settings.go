// Package harvest runs site harvests: it streams a site's questions,
// normalizes them, writes one file per record and hands each file to the
// upload and notification collaborators.
package harvest

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/config"
	"github.com/JakeFAU/stackexchange-crawler/internal/notify"
	"github.com/JakeFAU/stackexchange-crawler/internal/questions"
	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
	"github.com/JakeFAU/stackexchange-crawler/internal/storage"
)

// Unresolved-site policies.
const (
	// OnUnresolvedSkip logs and counts a record whose forum cannot be
	// resolved, then moves on.
	OnUnresolvedSkip = config.OnUnresolvedSkip
	// OnUnresolvedAbort ends the site run with the lookup error.
	OnUnresolvedAbort = config.OnUnresolvedAbort
)

// Settings is everything needed to build a Harvester. It is a plain value so
// parallel site runs can each build their own component graph from it.
// Provider and Notifier are shared between runs and must be safe for
// concurrent use.
type Settings struct {
	RunID             string
	OutputDir         string
	Source            string
	Location          *time.Location
	Client            stackexchange.Config
	Retry             retry.Config
	RetryOptions      []retry.Option
	SitesAttempts     int
	QuestionsAttempts int
	OnUnresolved      string
	Window            questions.Window
	Provider          storage.Provider
	StoragePrefix     string
	Notifier          *notify.Notifier
	Out               io.Writer
	Logger            *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func (s Settings) withDefaults() (Settings, error) {
	if s.OutputDir == "" {
		return s, fmt.Errorf("harvest: output dir is required")
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.OnUnresolved == "" {
		s.OnUnresolved = OnUnresolvedSkip
	}
	if s.OnUnresolved != OnUnresolvedSkip && s.OnUnresolved != OnUnresolvedAbort {
		return s, fmt.Errorf("harvest: unknown unresolved-site policy %q", s.OnUnresolved)
	}
	if s.Provider == nil {
		s.Provider = &storage.NoOpProvider{}
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return s, nil
}
