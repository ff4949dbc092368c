package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/vaultsearch/internal/config"
	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/search"
	"github.com/Aman-CERP/vaultsearch/internal/vault"
	"github.com/Aman-CERP/vaultsearch/pkg/version"
)

// ServerName is the implementation name reported to clients.
const ServerName = "vaultsearch"

// Result limits for the search tools.
const (
	defaultLimit = 10
	maxLimit     = 50
)

// Searcher is the subset of the search service the server needs.
type Searcher interface {
	SearchFilesLimit(q string, mode index.Mode, limit int) []search.MatchedFile
	GetFileSubItems(ctx context.Context, path, q string) (search.SubItemsResult, error)
	SearchInFile(ctx context.Context, path, q string) (search.SearchResult, error)
	Status(ctx context.Context) search.Status
	Vault() *vault.Vault
}

// Server is the MCP server for vaultsearch.
// It exposes vault search and in-file search as tools and the vault's
// notes as resources.
type Server struct {
	mcp    *mcp.Server
	svc    Searcher
	vault  *vault.Vault
	config *config.Config
	logger *slog.Logger

	rootPath string

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_vault",
		Description: "Ranks the notes in the vault against the query. Matches titles, folder names, front-matter aliases, headings and body text, in English and Chinese, with prefix and typo tolerance. Set excerpts to see the matching lines.",
	},
	{
		Name:        "search_in_file",
		Description: "Fuzzy-matches characters of the query, in order, against each line of one note. Returns matched lines with highlight positions and the surrounding paragraph.",
	},
	{
		Name:        "index_status",
		Description: "Reports whether the vault index is ready, its size, and whether Chinese segmentation is available.",
	},
}

// NewServer creates a new MCP server over svc.
func NewServer(svc Searcher, cfg *config.Config) (*Server, error) {
	if svc == nil {
		return nil, errors.New("search service is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	v := svc.Vault()
	s := &Server{
		svc:      svc,
		vault:    v,
		config:   cfg,
		rootPath: v.Root(),
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with the given arguments and returns
// markdown for the search tools and *IndexStatusOutput for index_status.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "search_vault":
		in := SearchVaultInput{
			Query:    stringArg(args, "query"),
			Mode:     stringArg(args, "mode"),
			Limit:    intArg(args, "limit"),
			Excerpts: boolArg(args, "excerpts"),
		}
		out, err := s.searchVault(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatVaultResults(in.Query, out), nil
	case "search_in_file":
		in := SearchInFileInput{
			Path:  stringArg(args, "path"),
			Query: stringArg(args, "query"),
			Limit: intArg(args, "limit"),
		}
		out, err := s.searchInFile(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatFileResults(in.Query, out), nil
	case "index_status":
		out := s.indexStatus(ctx)
		return &out, nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// searchVault runs a ranked vault search.
func (s *Server) searchVault(ctx context.Context, in SearchVaultInput) (SearchVaultOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchVaultOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	mode := index.ModeAnd
	if in.Mode != "" {
		m, err := index.ParseMode(in.Mode)
		if err != nil {
			return SearchVaultOutput{}, NewInvalidParamsError(err.Error())
		}
		mode = m
	}
	limit := clampLimit(in.Limit, defaultLimit, 1, maxLimit)

	if !s.svc.Status(ctx).Ready {
		return SearchVaultOutput{}, MapError(vserrors.ErrIndexNotReady)
	}

	start := time.Now()
	requestID := generateRequestID()

	files := s.svc.SearchFilesLimit(in.Query, mode, limit)

	out := SearchVaultOutput{Results: make([]NoteResultOutput, 0, len(files))}
	for _, f := range files {
		r := NoteResultOutput{Path: f.Path, Score: f.Score, MatchedTerms: f.MatchedTerms}
		if in.Excerpts {
			sub, err := s.svc.GetFileSubItems(ctx, f.Path, in.Query)
			if err != nil {
				s.logger.Debug("excerpts_skipped",
					slog.String("request_id", requestID),
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
			}
			for _, it := range sub.Items {
				r.Excerpts = append(r.Excerpts, ExcerptOutput{Line: it.Row + 1, Text: it.Text})
			}
		}
		out.Results = append(out.Results, r)
	}

	s.logger.Info("search_vault_completed",
		slog.String("request_id", requestID),
		slog.String("mode", string(mode)),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(out.Results)))
	return out, nil
}

// searchInFile runs an in-file fuzzy search.
func (s *Server) searchInFile(ctx context.Context, in SearchInFileInput) (SearchInFileOutput, error) {
	if strings.TrimSpace(in.Path) == "" {
		return SearchInFileOutput{}, NewInvalidParamsError("path parameter is required")
	}
	if strings.TrimSpace(in.Query) == "" {
		return SearchInFileOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if _, err := s.vault.Abs(in.Path); err != nil {
		return SearchInFileOutput{}, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", in.Path))
	}
	limit := clampLimit(in.Limit, defaultLimit, 1, maxLimit)

	res, err := s.svc.SearchInFile(ctx, in.Path, in.Query)
	if err != nil {
		return SearchInFileOutput{}, MapError(err)
	}

	out := SearchInFileOutput{Path: in.Path, Unsupported: res.Unsupported, Matches: []LineMatchOutput{}}
	for _, li := range res.Lines() {
		if len(out.Matches) == limit {
			break
		}
		out.Matches = append(out.Matches, LineMatchOutput{
			Line:      li.Line.Row + 1,
			Column:    li.Line.Col,
			Text:      li.Line.Text,
			Positions: li.Line.Positions,
			Context:   li.Context,
		})
	}
	return out, nil
}

// indexStatus reports the vault and index state.
func (s *Server) indexStatus(ctx context.Context) IndexStatusOutput {
	st := s.svc.Status(ctx)
	out := IndexStatusOutput{
		Vault: DetectVault(s.rootPath),
		Stats: IndexStats{
			Ready:         st.Ready,
			Documents:     st.Documents,
			Terms:         st.Terms,
			Degraded:      st.Degraded,
			Source:        string(st.Source),
			LastReindexMs: st.LastReindex.Milliseconds(),
			SkippedFiles:  st.Skipped,
		},
	}
	if !st.SnapshotSavedAt.IsZero() {
		out.Stats.SnapshotSavedAt = st.SnapshotSavedAt.Format(time.RFC3339)
	}
	return out
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchVaultHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSearchInFileHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchVaultHandler is the MCP SDK handler for the search_vault tool.
func (s *Server) mcpSearchVaultHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchVaultInput) (
	*mcp.CallToolResult,
	SearchVaultOutput,
	error,
) {
	out, err := s.searchVault(ctx, input)
	if err != nil {
		return nil, SearchVaultOutput{}, err
	}
	return nil, out, nil
}

// mcpSearchInFileHandler is the MCP SDK handler for the search_in_file tool.
func (s *Server) mcpSearchInFileHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInFileInput) (
	*mcp.CallToolResult,
	SearchInFileOutput,
	error,
) {
	out, err := s.searchInFile(ctx, input)
	if err != nil {
		return nil, SearchInFileOutput{}, err
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	return nil, s.indexStatus(ctx), nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server stops when its context is canceled.
	return nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
