package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps note extensions to MIME types.
var mimeTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".txt":      "text/plain",
	".org":      "text/x-org",
	".rst":      "text/x-rst",
}

// MimeTypeForPath returns the MIME type for a note path.
// Returns "text/plain" for unknown types.
func MimeTypeForPath(path string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "text/plain"
}
