// Package tools implements the two documentation tools and assembles them
// into the server every transport exposes.
package tools

import (
	"context"
	"log/slog"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/internal/policy"
	"github.com/ggoodman/context7-mcp-go/mcp"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
)

const (
	ServerName    = "Context7"
	ServerVersion = "1.0.6"

	// DefaultMinimumTokens is the documentation token floor used when none
	// is configured.
	DefaultMinimumTokens = 10000

	serverInstructions = "Retrieves up-to-date documentation and code examples for any library."
)

// Upstream is the documentation API the tools call.
type Upstream interface {
	SearchLibraries(ctx context.Context, query string) (*context7.SearchResponse, error)
	FetchLibraryDocumentation(ctx context.Context, libraryID string, opts context7.DocsOptions) (string, error)
}

// Config wires the tools to their collaborators.
type Config struct {
	Upstream      Upstream
	Filter        *policy.Filter
	MinimumTokens int
	Logger        *slog.Logger
}

// Toolset holds the shared, read-only state of both tools. One Toolset
// serves every engine in the process.
type Toolset struct {
	upstream  Upstream
	filter    *policy.Filter
	minTokens int
	log       *slog.Logger
}

// New builds a Toolset. A zero MinimumTokens selects DefaultMinimumTokens.
func New(cfg Config) *Toolset {
	ts := &Toolset{
		upstream:  cfg.Upstream,
		filter:    cfg.Filter,
		minTokens: cfg.MinimumTokens,
		log:       cfg.Logger,
	}
	if ts.minTokens <= 0 {
		ts.minTokens = DefaultMinimumTokens
	}
	if ts.log == nil {
		ts.log = slog.New(slog.DiscardHandler)
	}
	return ts
}

// NewServer returns the server capabilities shared by all transports.
func NewServer(cfg Config) mcpservice.ServerCapabilities {
	ts := New(cfg)
	return mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: ServerName, Version: ServerVersion}),
		mcpservice.WithInstructions(serverInstructions),
		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(
			ts.ResolveLibraryIDTool(),
			ts.GetLibraryDocsTool(),
		)),
	)
}
