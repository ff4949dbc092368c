package vault

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/match"
)

var frontMatterRe = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|\z)`)

// ReadSummary reports the outcome of a bulk read.
type ReadSummary struct {
	Read    int `json:"read"`
	Skipped int `json:"skipped"`
	// Failures maps skipped paths to their error message.
	Failures map[string]string `json:"failures,omitempty"`
}

// ReadAll lists the vault and reads every note.
func (v *Vault) ReadAll(ctx context.Context) ([]index.IndexedDocument, ReadSummary, error) {
	files, err := v.List(ctx)
	if err != nil {
		return nil, ReadSummary{}, err
	}
	return v.ReadDocuments(ctx, files)
}

// ReadDocuments reads files in parallel. Transient failures are retried;
// a file that still cannot be read is skipped, logged and counted. Only
// cancellation aborts the whole read.
func (v *Vault) ReadDocuments(ctx context.Context, files []FileStat) ([]index.IndexedDocument, ReadSummary, error) {
	docs := make([]index.IndexedDocument, len(files))
	ok := make([]bool, len(files))

	var (
		mu      sync.Mutex
		summary = ReadSummary{Failures: make(map[string]string)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, f := range files {
		g.Go(func() error {
			doc, err := vserrors.RetryWithResult(gctx, vserrors.ReadRetryConfig(), func() (index.IndexedDocument, error) {
				return v.readDocument(f)
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("vault_file_skipped",
					append([]any{slog.String("path", f.Path)}, attrsToAny(vserrors.LogAttrs(err))...)...)
				mu.Lock()
				summary.Skipped++
				summary.Failures[f.Path] = err.Error()
				mu.Unlock()
				return nil
			}
			docs[i] = doc
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ReadSummary{}, err
	}

	out := make([]index.IndexedDocument, 0, len(files))
	for i := range docs {
		if ok[i] {
			out = append(out, docs[i])
		}
	}
	summary.Read = len(out)
	return out, summary, nil
}

// ReadDocument reads and parses one note.
func (v *Vault) ReadDocument(ctx context.Context, rel string) (index.IndexedDocument, error) {
	st, err := v.Stat(rel)
	if err != nil {
		return index.IndexedDocument{}, err
	}
	return vserrors.RetryWithResult(ctx, vserrors.ReadRetryConfig(), func() (index.IndexedDocument, error) {
		return v.readDocument(st)
	})
}

func (v *Vault) readDocument(f FileStat) (index.IndexedDocument, error) {
	data, err := v.readBytes(f.Path)
	if err != nil {
		return index.IndexedDocument{}, err
	}
	if isBinary(data) || !utf8.Valid(data) {
		return index.IndexedDocument{}, vserrors.UnsupportedContent(f.Path)
	}
	return ParseDocument(f.Path, data, f.ModTime), nil
}

// ReadFile reads a plain-text file as lines. Non-plain-text files return
// an UNSUPPORTED_CONTENT error.
func (v *Vault) ReadFile(ctx context.Context, rel string) ([]match.Line, error) {
	if v.ContentType(rel) != ContentPlainText {
		return nil, vserrors.UnsupportedContent(rel)
	}
	data, err := vserrors.RetryWithResult(ctx, vserrors.ReadRetryConfig(), func() ([]byte, error) {
		return v.readBytes(rel)
	})
	if err != nil {
		return nil, err
	}
	if isBinary(data) || !utf8.Valid(data) {
		return nil, vserrors.UnsupportedContent(rel)
	}
	return match.SplitLines(string(data)), nil
}

// ParseDocument splits a note into index fields. Front matter aliases
// and tags feed the aliases field; markdown headings feed the headings
// field; the body after front matter is the content.
func ParseDocument(rel string, data []byte, modTime int64) index.IndexedDocument {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	base := path.Base(rel)
	folder := path.Dir(rel)
	if folder == "." {
		folder = ""
	}

	fm, body := splitFrontMatter(data)
	doc := index.IndexedDocument{
		Path:     rel,
		Basename: strings.TrimSuffix(base, path.Ext(base)),
		Folder:   folder,
		Aliases:  strings.Join(frontMatterNames(rel, fm), " "),
		Content:  string(body),
		ModTime:  modTime,
	}
	if strings.EqualFold(path.Ext(rel), ".md") {
		doc.Headings = strings.Join(headings(body), "\n")
	}
	return doc
}

func splitFrontMatter(data []byte) ([]byte, []byte) {
	loc := frontMatterRe.FindSubmatchIndex(data)
	if loc == nil {
		return nil, data
	}
	return data[loc[2]:loc[3]], data[loc[1]:]
}

// frontMatterNames returns alias and tag values. Malformed front matter
// is logged and ignored.
func frontMatterNames(rel string, fm []byte) []string {
	if len(fm) == 0 {
		return nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(fm, &node); err != nil {
		slog.Debug("front_matter_invalid", slog.String("path", rel), slog.String("error", err.Error()))
		return nil
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil
	}

	var names []string
	mapping := node.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		switch strings.ToLower(mapping.Content[i].Value) {
		case "aliases", "alias":
			names = append(names, flattenYAML(mapping.Content[i+1])...)
		case "tags", "tag":
			for _, t := range flattenYAML(mapping.Content[i+1]) {
				names = append(names, strings.TrimPrefix(t, "#"))
			}
		}
	}
	return names
}

func flattenYAML(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode && c.Value != "" {
				out = append(out, c.Value)
			}
		}
		return out
	case yaml.ScalarNode:
		if n.Value == "" {
			return nil
		}
		// "tags: a, b" is common in hand-written notes.
		var out []string
		for _, part := range strings.Split(n.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// headings returns the text of every markdown heading in source order.
func headings(source []byte) []string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		collectText(h, source, &sb)
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

func collectText(n ast.Node, source []byte, sb *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			collectText(c, source, sb)
		}
	}
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

// IsUnsupported reports whether err marks a non-plain-text file.
func IsUnsupported(err error) bool {
	return errors.Is(err, vserrors.ErrUnsupportedContent)
}
