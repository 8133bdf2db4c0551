package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/mcpservice"
	"github.com/invopop/jsonschema"
)

const GetLibraryDocsName = "get-library-docs"

const docsDescription = "Fetches up-to-date documentation for a library. You must call 'resolve-library-id' first to obtain the exact Context7-compatible library ID required to use this tool, UNLESS the user explicitly provides a library ID in the format '/org/project' or '/org/project/version' in their query."

const msgDocsNotFound = "Documentation not found or not finalized for this library. This might have happened because you used an invalid Context7-compatible library ID. To get a valid Context7-compatible library ID, use the 'resolve-library-id' with the package name you wish to retrieve documentation for."

const foldersMarker = "?folders="

// TokenCount is a token budget that clients may send as a JSON number or as
// a numeric string. Values that do not parse decode as zero.
type TokenCount int

func (t *TokenCount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = 0
		return nil
	}
	if s, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		*t = 0
		return nil
	}
	*t = TokenCount(f)
	return nil
}

func (t TokenCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(t))
}

// JSONSchema advertises both accepted encodings.
func (TokenCount) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string"},
		},
	}
}

// DocsArgs are the arguments of get-library-docs.
type DocsArgs struct {
	LibraryID string      `json:"context7CompatibleLibraryID" jsonschema_description:"Exact Context7-compatible library ID (e.g., '/mongodb/docs', '/vercel/next.js', '/supabase/supabase', '/vercel/next.js/v14.3.0-canary.87') retrieved from 'resolve-library-id' or directly from user query in the format '/org/project' or '/org/project/version'."`
	Topic     string      `json:"topic,omitempty" jsonschema_description:"Topic to focus documentation on (e.g., 'hooks', 'routing')."`
	Tokens    *TokenCount `json:"tokens,omitempty"`
}

// GetLibraryDocsTool returns the get-library-docs tool.
func (ts *Toolset) GetLibraryDocsTool() mcpservice.StaticTool {
	tool := mcpservice.NewTool(GetLibraryDocsName, ts.getLibraryDocs,
		mcpservice.WithToolTitle("Get Library Docs"),
		mcpservice.WithToolDescription(docsDescription),
		mcpservice.WithToolAllowAdditionalProperties(true),
	)
	// The floor is only known at runtime.
	if p, ok := tool.Descriptor.InputSchema.Properties["tokens"]; ok {
		p.Description = fmt.Sprintf("Maximum number of tokens of documentation to retrieve (default: %d). Higher values provide more context but consume more tokens.", ts.minTokens)
		tool.Descriptor.InputSchema.Properties["tokens"] = p
	}
	return tool
}

func (ts *Toolset) getLibraryDocs(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[DocsArgs]) error {
	args := r.Args()
	id, folders := splitFolders(strings.TrimSpace(args.LibraryID))
	if id == "" || id == "/" {
		w.SetError(true)
		return w.AppendText("context7CompatibleLibraryID is required")
	}
	if hasDotSegment(id) {
		ts.log.InfoContext(ctx, "tool.docs.invalid_id", slog.String("library_id", id))
		w.SetError(true)
		return w.AppendText(fmt.Sprintf("Invalid Context7-compatible library ID %q: path segments may not be \".\" or \"..\".", id))
	}
	if !ts.filter.Allows(strings.TrimPrefix(id, "/")) {
		ts.log.InfoContext(ctx, "tool.docs.filtered", slog.String("library_id", id))
		w.SetError(true)
		return w.AppendText(fmt.Sprintf("Library %q is excluded by the configured repository filters (%s).", id, ts.filter.Describe()))
	}

	opts := context7.DocsOptions{
		Tokens:  ts.tokenBudget(args.Tokens),
		Topic:   strings.TrimSpace(args.Topic),
		Folders: folders,
	}
	text, err := ts.upstream.FetchLibraryDocumentation(ctx, id, opts)
	switch {
	case errors.Is(err, context7.ErrNoContent):
		ts.log.InfoContext(ctx, "tool.docs.not_found", slog.String("library_id", id))
		return w.AppendText(msgDocsNotFound)
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ts.log.WarnContext(ctx, "tool.docs.upstream_fail", slog.String("library_id", id), slog.String("err", err.Error()))
		w.SetError(true)
		return w.AppendText(upstreamMessage(err))
	}
	ts.log.DebugContext(ctx, "tool.docs.ok", slog.String("library_id", id), slog.Int("tokens", opts.Tokens), slog.Int("bytes", len(text)))
	return w.AppendText(text)
}

// tokenBudget raises a requested budget to the configured floor.
func (ts *Toolset) tokenBudget(requested *TokenCount) int {
	if requested == nil || int(*requested) < ts.minTokens {
		return ts.minTokens
	}
	return int(*requested)
}

// splitFolders separates "/org/project?folders=a,b" into the id and the
// folder list.
func splitFolders(id string) (string, string) {
	base, folders, ok := strings.Cut(id, foldersMarker)
	if !ok {
		return id, ""
	}
	return base, strings.TrimSpace(folders)
}

// hasDotSegment reports whether id contains a "." or ".." path segment,
// which would be resolved away when the upstream URL is built.
func hasDotSegment(id string) bool {
	for _, seg := range strings.Split(id, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
