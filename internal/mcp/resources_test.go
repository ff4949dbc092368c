package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterResources_ListsNotes(t *testing.T) {
	// Given: a vault with two notes, a binary file and an excluded folder
	files := map[string]string{
		"Journal.md":       "granite",
		"Projects/plan.md": "quartz",
		"image.png":        "\x89PNG",
		".obsidian/ws.md":  "ignored",
	}
	s, _ := newTestServer(t, files, false)

	// When: registering resources
	n, err := s.RegisterResources(context.Background())

	// Then: only the notes are registered
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadResource(t *testing.T) {
	files := map[string]string{
		"Journal.md": "granite countertop\n",
		"image.png":  "\x89PNG",
	}
	s, root := newTestServer(t, files, false)
	ctx := context.Background()

	t.Run("note content", func(t *testing.T) {
		res, err := s.ReadResource(ctx, "file://Journal.md")
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "granite countertop\n", res.Contents[0].Text)
		assert.Equal(t, "text/markdown", res.Contents[0].MIMEType)
		assert.Equal(t, "file://Journal.md", res.Contents[0].URI)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "chunk://1")
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "file://../etc/passwd")
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	})

	t.Run("absolute path", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "file://"+filepath.Join(root, "Journal.md"))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	})

	t.Run("not a note", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "file://image.png")
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.ReadResource(ctx, "file://Gone.md")
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeFileNotFound, mcpErr.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := strings.Repeat("a", MaxResourceSize+1)
		require.NoError(t, os.WriteFile(filepath.Join(root, "Big.md"), []byte(big), 0o644))
		_, err := s.ReadResource(ctx, "file://Big.md")
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeFileTooLarge, mcpErr.Code)
	})
}

func TestMimeTypeForPath(t *testing.T) {
	tests := map[string]string{
		"a.md":      "text/markdown",
		"A.MD":      "text/markdown",
		"notes.txt": "text/plain",
		"x.org":     "text/x-org",
		"no-ext":    "text/plain",
		"dir/b.mdx": "text/markdown",
	}
	for path, want := range tests {
		assert.Equal(t, want, MimeTypeForPath(path), path)
	}
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "2.0 MB", humanSize(2*1024*1024))
	assert.Equal(t, "1.0 GB", humanSize(1024*1024*1024))
}
