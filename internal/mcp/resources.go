package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/vaultsearch/internal/vault"
)

// MaxResourceSize is the maximum file size for resources (1MB).
const MaxResourceSize = 1024 * 1024

// maxResources bounds how many notes are listed as resources.
const maxResources = 10000

// RegisterResources lists the vault's notes and registers them as MCP
// resources. Call it after NewServer and before Serve.
func (s *Server) RegisterResources(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.vault.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list notes: %w", err)
	}
	if len(files) > maxResources {
		s.logger.Warn("resources_truncated", "total", len(files), "registered", maxResources)
		files = files[:maxResources]
	}

	for _, f := range files {
		s.registerFileResource(f)
	}

	s.logger.Info("resources_registered", "count", len(files))
	return len(files), nil
}

// registerFileResource registers a single note as an MCP resource.
func (s *Server) registerFileResource(f vault.FileStat) {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(f.Path),
			URI:         resourceURI(f.Path),
			Description: fmt.Sprintf("%s (%s)", f.Path, humanSize(f.Size)),
			MIMEType:    MimeTypeForPath(f.Path),
		},
		s.makeFileHandler(f.Path),
	)
}

// makeFileHandler creates a read handler for a specific note path.
func (s *Server) makeFileHandler(path string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadResource(ctx, path)
	}
}

// handleReadResource reads a note. The path must stay inside the vault
// and name an indexable note no larger than MaxResourceSize.
func (s *Server) handleReadResource(ctx context.Context, rel string) (*mcp.ReadResourceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, MapError(err)
	}
	if rel == "" || filepath.IsAbs(rel) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", rel))
	}
	abs, err := s.vault.Abs(rel)
	if err != nil {
		return nil, MapError(err)
	}
	if !s.vault.Includes(rel) {
		return nil, NewResourceNotFoundError(resourceURI(rel))
	}

	fs, err := s.vault.Stat(rel)
	if err != nil {
		return nil, MapError(err)
	}
	if fs.Size > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", fs.Size, MaxResourceSize),
		}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      resourceURI(rel),
				MIMEType: MimeTypeForPath(rel),
				Text:     string(content),
			},
		},
	}, nil
}

// ReadResource reads a note by its file:// URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	rel, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}
	return s.handleReadResource(ctx, rel)
}

func resourceURI(rel string) string {
	return "file://" + rel
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
