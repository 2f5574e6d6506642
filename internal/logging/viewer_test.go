package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func TestViewer_Tail_ReturnsLastNFilteredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeLines(t, path,
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"starting"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"DEBUG","msg":"tick"}`,
		`{"time":"2026-01-01T00:00:02Z","level":"ERROR","msg":"boom"}`,
	)

	v := NewViewer(ViewerConfig{Level: "info"}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "starting", entries[0].Message)
	assert.Equal(t, "boom", entries[1].Message)
}

func TestViewer_Tail_RespectsPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeLines(t, path,
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"search complete"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"INFO","msg":"unrelated"}`,
	)

	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile("search")}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "search complete", entries[0].Message)
}

func TestViewer_Tail_TruncatesToLastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeLines(t, path,
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"one"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"INFO","msg":"two"}`,
		`{"time":"2026-01-01T00:00:02Z","level":"INFO","msg":"three"}`,
	)

	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	entries, err := v.Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "three", entries[1].Message)
}

func TestViewer_FormatEntry_NoColorIsPlain(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	line := v.FormatEntry(LogEntry{
		Time:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Level:   "INFO",
		Message: "hello",
	})
	assert.NotContains(t, line, "\x1b[")
	assert.Contains(t, line, "hello")
}

func TestViewer_Follow_StreamsAppendedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	writeLines(t, path, `{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"before"}`)

	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 10)
	go func() { _ = v.Follow(ctx, path, entries) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-01T00:00:05Z","level":"WARN","msg":"after"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-entries:
		assert.Equal(t, "after", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive appended entry")
	}
}
