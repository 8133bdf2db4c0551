package mcpservice

import (
	"context"

	"github.com/ggoodman/context7-mcp-go/mcp"
)

// ServerCapabilities is what the engine needs from a server implementation.
// Implementations MUST be safe for concurrent use.
type ServerCapabilities interface {
	// GetServerInfo returns the implementation info surfaced in initialize.
	GetServerInfo(ctx context.Context) (mcp.ImplementationInfo, error)

	// GetPreferredProtocolVersion returns a version to answer with instead of
	// the negotiated default. If ok is false the engine negotiates on its own.
	GetPreferredProtocolVersion(ctx context.Context) (version string, ok bool, err error)

	// GetInstructions returns optional usage instructions for the client.
	GetInstructions(ctx context.Context) (instructions string, ok bool, err error)

	// GetToolsCapability returns the tools capability. If ok is false tools
	// are not advertised and tools/* requests fail with method not found.
	GetToolsCapability(ctx context.Context) (cap ToolsCapability, ok bool, err error)
}

// ToolsCapability lists and invokes tools.
type ToolsCapability interface {
	// ListTools returns a page of tools. A nil cursor requests the first page.
	ListTools(ctx context.Context, cursor *string) (Page[mcp.Tool], error)

	// CallTool invokes the named tool. Unknown names return ErrToolNotFound.
	// Failures of the tool itself belong in the result with IsError set; a
	// returned error is reserved for failures of the call machinery.
	CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}
