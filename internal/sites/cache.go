package sites

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
)

// readCache decodes the cache object token by token so the key order, which
// is the load order, survives.
func readCache(path string) ([]stackexchange.Site, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("read cache: expected object, got %v", tok)
	}

	var ordered []stackexchange.Site
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read cache key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("read cache: unexpected key %v", keyTok)
		}
		var site stackexchange.Site
		if err := dec.Decode(&site); err != nil {
			return nil, fmt.Errorf("read cache entry %q: %w", key, err)
		}
		if site.APIName == "" {
			site.APIName = key
		}
		ordered = append(ordered, site)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("read cache: trailing data after object")
	}
	return ordered, nil
}

// writeCache replaces the cache file atomically. Sites decoded from the API
// are written as received. Concurrent writers race benignly: the last rename
// wins and every version is complete.
func writeCache(path string, ordered []stackexchange.Site) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, site := range ordered {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(site.APIName)
		if err != nil {
			return fmt.Errorf("marshal key: %w", err)
		}
		value, err := json.MarshalIndent(site, "    ", "    ")
		if err != nil {
			return fmt.Errorf("marshal site %s: %w", site.APIName, err)
		}
		buf.WriteString("\n    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	buf.WriteString("\n}\n")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sites-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
