package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"INFO","msg":"reindex_complete","documents":12}
{"time":"2026-03-01T10:00:01.000Z","level":"DEBUG","msg":"watcher_started","mode":"fsnotify"}
not json at all
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"snapshot_discarded","code":"ERR_205_MALFORMED_SNAPSHOT"}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"watch_event_failed","path":"a.md"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func msgs(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Msg
		if !e.IsValid {
			out[i] = e.Raw
		}
	}
	return out
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"all", ViewerConfig{}, 50, []string{"reindex_complete", "watcher_started", "not json at all", "snapshot_discarded", "watch_event_failed"}},
		{"last two", ViewerConfig{}, 2, []string{"snapshot_discarded", "watch_event_failed"}},
		{"warn and above", ViewerConfig{Level: "warn"}, 50, []string{"snapshot_discarded", "watch_event_failed"}},
		{"pattern", ViewerConfig{Pattern: regexp.MustCompile(`snapshot`)}, 50, []string{"snapshot_discarded"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(path, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msgs(entries))
		})
	}
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	_, err := NewViewer(ViewerConfig{}, &bytes.Buffer{}).Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
	assert.Error(t, err)
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// Given: a parsed entry with attributes
	entry := ParseLine(`{"time":"2026-03-01T10:00:00.123Z","level":"INFO","msg":"search_complete","results":3,"mode":"and"}`)

	// Then: attributes are sorted after the message
	assert.Equal(t, "10:00:00.123 INFO  search_complete mode=and results=3", v.FormatEntry(entry))
	assert.Equal(t, "plain text", v.FormatEntry(ParseLine("plain text")))
}

func TestViewer_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	entries, err := v.Tail(writeLog(t, sampleLog), 1)
	require.NoError(t, err)
	v.Print(entries)

	assert.Equal(t, "10:00:03.000 ERROR watch_event_failed path=a.md\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log file being followed
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "info"}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(150 * time.Millisecond)

	// When: new lines are appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(strings.Join([]string{
		`{"time":"2026-03-01T10:00:04.000Z","level":"DEBUG","msg":"hidden"}`,
		`{"time":"2026-03-01T10:00:05.000Z","level":"INFO","msg":"reconcile_complete"}`,
	}, "\n") + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only new, matching entries arrive
	select {
	case e := <-entries:
		assert.Equal(t, "reconcile_complete", e.Msg)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry followed")
	}
	cancel()
	assert.NoError(t, <-done)
}
