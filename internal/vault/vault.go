// Package vault is the host file layer: it lists indexable notes, reads
// them into index documents and reads single files as lines for in-file
// search.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/Aman-CERP/vaultsearch/internal/config"
	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
)

// ContentType classifies a vault file for in-file search.
type ContentType string

const (
	// ContentPlainText files are split into lines and matched.
	ContentPlainText ContentType = "plaintext"
	// ContentUnsupported files (images, PDFs, canvases) are listed but not read.
	ContentUnsupported ContentType = "unsupported"
)

// FileStat is one indexable file. Path is slash-separated and relative to
// the vault root; ModTime is in unix milliseconds.
type FileStat struct {
	Path    string
	ModTime int64
	Size    int64
}

// Vault reads notes under a root directory.
type Vault struct {
	root       string
	extensions map[string]bool
	ignore     *Ignore
	workers    int
}

// New creates a Vault rooted at root. workers bounds parallel reads; zero
// means runtime.NumCPU().
func New(root string, cfg config.VaultConfig, workers int) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeInvalidPath, "invalid vault root", err).WithDetail("path", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeFileNotFound, "vault root not found", err).WithDetail("path", abs)
	}
	if !info.IsDir() {
		return nil, vserrors.New(vserrors.ErrCodeInvalidPath, "vault root is not a directory", nil).WithDetail("path", abs)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	exclude := slices.Clone(cfg.Exclude)
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		exclude = append(exclude, "/"+filepath.ToSlash(cfg.DataDir)+"/")
	}

	return &Vault{
		root:       abs,
		extensions: exts,
		ignore:     NewIgnore(exclude),
		workers:    workers,
	}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// Includes reports whether rel is an indexable note path: a configured
// extension outside every excluded pattern.
func (v *Vault) Includes(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !v.extensions[strings.ToLower(path.Ext(rel))] {
		return false
	}
	return !v.ignore.Match(rel, false)
}

// Excluded reports whether the directory rel is skipped during walks.
func (v *Vault) Excluded(rel string) bool {
	return v.ignore.Match(filepath.ToSlash(rel), true)
}

// Rel converts an absolute path inside the vault to a vault path.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", vserrors.New(vserrors.ErrCodeInvalidPath, "path is outside the vault", err).WithDetail("path", abs)
	}
	return filepath.ToSlash(rel), nil
}

// Abs resolves a vault path, rejecting paths that escape the root.
func (v *Vault) Abs(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		if _, err := v.Rel(rel); err != nil {
			return "", err
		}
		return filepath.Clean(rel), nil
	}
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", vserrors.New(vserrors.ErrCodeInvalidPath, "invalid vault path", nil).WithDetail("path", rel)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// ContentType classifies rel by extension.
func (v *Vault) ContentType(rel string) ContentType {
	if v.extensions[strings.ToLower(path.Ext(rel))] {
		return ContentPlainText
	}
	return ContentUnsupported
}

// List walks the vault and returns every indexable file sorted by path.
// Unreadable entries are skipped.
func (v *Vault) List(ctx context.Context) ([]FileStat, error) {
	var files []FileStat
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			slog.Debug("vault_walk_skipped", slog.String("path", p), slog.String("error", err.Error()))
			return nil
		}
		if p == v.root {
			return nil
		}

		rel, relErr := v.Rel(p)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if v.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !v.Includes(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		files = append(files, FileStat{Path: rel, ModTime: info.ModTime().UnixMilli(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk vault: %w", err)
	}

	slices.SortFunc(files, func(a, b FileStat) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// Stat returns the FileStat of one vault path.
func (v *Vault) Stat(rel string) (FileStat, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return FileStat{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return FileStat{}, notFound(rel, err)
		}
		return FileStat{}, vserrors.ReadError(rel, err)
	}
	return FileStat{Path: filepath.ToSlash(rel), ModTime: info.ModTime().UnixMilli(), Size: info.Size()}, nil
}

// readBytes reads rel, mapping failures onto the error taxonomy: missing
// files are not retryable, other I/O errors are.
func (v *Vault) readBytes(rel string) ([]byte, error) {
	abs, err := v.Abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(rel, err)
		}
		return nil, vserrors.ReadError(rel, err)
	}
	return data, nil
}

func notFound(rel string, cause error) error {
	return vserrors.New(vserrors.ErrCodeFileNotFound, "file not found: "+rel, cause).WithDetail("path", rel)
}

// isBinary looks for NUL bytes in the first 512 bytes.
func isBinary(data []byte) bool {
	head := data[:min(len(data), 512)]
	return bytes.IndexByte(head, 0) >= 0
}
