package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/normalize"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSystemSink(root, "", zap.NewNop())
	require.NoError(t, err)

	rec := normalize.OutputRecord{
		ExternalID: "stackexchange_Law_a<b>",
		Title:      "a<b>",
		Words:      "x & y",
		Meta:       map[string]normalize.ForumMeta{"stackexchange": {Forum: "Law"}},
	}
	path, payload, err := s.Write(context.Background(), "law", 99, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "law", "stackexchange_law_99.json"), path)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
	assert.Contains(t, string(onDisk), "\n    \"external_id\"")
	assert.Contains(t, string(onDisk), "a<b>")
	assert.Contains(t, string(onDisk), "x & y")

	var back normalize.OutputRecord
	require.NoError(t, json.Unmarshal(onDisk, &back))
	assert.Equal(t, rec, back)
}

func TestWriteOverwrites(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemSink(t.TempDir(), "stackexchange", zap.NewNop())
	require.NoError(t, err)

	_, _, err = s.Write(context.Background(), "law", 1, normalize.OutputRecord{Title: "first"})
	require.NoError(t, err)
	path, _, err := s.Write(context.Background(), "law", 1, normalize.OutputRecord{Title: "second"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "second"))
	assert.False(t, strings.Contains(string(data), "first"))
}

func TestWriteCanceled(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemSink(t.TempDir(), "", zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = s.Write(ctx, "law", 1, normalize.OutputRecord{})
	require.Error(t, err)
}
