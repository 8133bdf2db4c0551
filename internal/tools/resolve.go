package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/internal/ranking"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
)

const ResolveLibraryIDName = "resolve-library-id"

const resolveDescription = `Resolves a package/product name to a Context7-compatible library ID and returns a list of matching libraries.

You MUST call this function before 'get-library-docs' to obtain a valid Context7-compatible library ID UNLESS the user explicitly provides a library ID in the format '/org/project' or '/org/project/version' in their query.

Selection Process:
1. Analyze the query to understand what library/package the user is looking for
2. Return the most relevant match based on:
- Name similarity to the query (exact matches prioritized)
- Description relevance to the query's intent
- Documentation coverage (prioritize libraries with higher Code Snippet counts)
- Trust score (consider libraries with scores of 7-10 more authoritative)

Response Format:
- Return the selected library ID in a clearly marked section
- Provide a brief explanation for why this library was chosen
- If multiple good matches exist, acknowledge this but proceed with the most relevant one
- If no good matches exist, clearly state this and suggest query refinements

For ambiguous queries, request clarification before proceeding with a best-guess match.`

const (
	msgSearchFailed = "Failed to retrieve library documentation data from Context7"
	msgNoLibraries  = "No documentation libraries available"
)

// ResolveArgs are the arguments of resolve-library-id.
type ResolveArgs struct {
	LibraryName string `json:"libraryName" jsonschema_description:"Library name to search for and retrieve a Context7-compatible library ID."`
}

// ResolveLibraryIDTool returns the resolve-library-id tool.
func (ts *Toolset) ResolveLibraryIDTool() mcpservice.StaticTool {
	return mcpservice.NewTool(ResolveLibraryIDName, ts.resolveLibraryID,
		mcpservice.WithToolTitle("Resolve Context7 Library ID"),
		mcpservice.WithToolDescription(resolveDescription),
		mcpservice.WithToolAllowAdditionalProperties(true),
	)
}

func (ts *Toolset) resolveLibraryID(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ResolveArgs]) error {
	name := strings.TrimSpace(r.Args().LibraryName)
	if name == "" {
		w.SetError(true)
		return w.AppendText("libraryName is required")
	}

	res, err := ts.upstream.SearchLibraries(ctx, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ts.log.WarnContext(ctx, "tool.resolve.upstream_fail", slog.String("query", name), slog.String("err", err.Error()))
		w.SetError(true)
		return w.AppendText(msgSearchFailed + ": " + upstreamMessage(err))
	}
	if res == nil || len(res.Results) == 0 {
		if res != nil && res.Error != "" {
			w.SetError(true)
			return w.AppendText(msgSearchFailed + ": " + res.Error)
		}
		return w.AppendText(msgNoLibraries)
	}

	total := len(res.Results)
	kept := ts.filter.Apply(res.Results)
	if len(kept) == 0 {
		ts.log.InfoContext(ctx, "tool.resolve.filtered_all", slog.String("query", name), slog.Int("total", total))
		return w.AppendText(fmt.Sprintf(
			"No libraries matched the configured repository filters. Context7 returned %d result(s) for %q, but all were excluded (%s).",
			total, name, ts.filter.Describe()))
	}

	ranked := ranking.Rerank(kept, name)
	ts.log.DebugContext(ctx, "tool.resolve.ok", slog.String("query", name), slog.Int("total", total), slog.Int("kept", len(ranked)))
	return w.AppendText(resolveHeader + formatSearchResults(ranked))
}

// upstreamMessage returns the user-facing text of an upstream failure.
func upstreamMessage(err error) string {
	var upstream *context7.Error
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return err.Error()
}
