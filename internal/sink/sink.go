// Package sink persists normalized records as one JSON file per question.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/normalize"
)

// FileSystemSink writes records under <root>/<site>/.
type FileSystemSink struct {
	root   string
	prefix string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at root. prefix names the files,
// normally normalize.DefaultSource.
func NewFileSystemSink(root, prefix string, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if prefix == "" {
		prefix = normalize.DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{root: root, prefix: prefix, logger: logger}, nil
}

// Root returns the output root.
func (s *FileSystemSink) Root() string {
	return s.root
}

// SiteDir returns the directory holding a site's records.
func (s *FileSystemSink) SiteDir(site string) string {
	return filepath.Join(s.root, site)
}

// EnsureSiteDir creates the site directory if needed.
func (s *FileSystemSink) EnsureSiteDir(site string) error {
	dir := s.SiteDir(site)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating site dir %s: %w", dir, err)
	}
	return nil
}

// FileName returns the record file name for a question.
func (s *FileSystemSink) FileName(site string, questionID int64) string {
	return fmt.Sprintf("%s_%s_%d.json", s.prefix, site, questionID)
}

// Encode renders a record the way it is stored: four-space indentation, HTML
// characters left unescaped.
func Encode(rec normalize.OutputRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

// Write stores rec, replacing any previous file for the same question, and
// returns the path and the bytes written.
func (s *FileSystemSink) Write(ctx context.Context, site string, questionID int64, rec normalize.OutputRecord) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("context canceled: %w", err)
	}
	payload, err := Encode(rec)
	if err != nil {
		return "", nil, err
	}
	if err := s.EnsureSiteDir(site); err != nil {
		return "", nil, err
	}
	target := filepath.Join(s.SiteDir(site), s.FileName(site, questionID))
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return "", nil, fmt.Errorf("writing record to %s: %w", target, err)
	}
	s.logger.Debug("record written", zap.String("path", target))
	return target, payload, nil
}
