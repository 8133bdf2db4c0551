package mcpservice

import (
	"context"

	"github.com/ggoodman/context7-mcp-go/mcp"
)

// ServerOption configures a server built by NewServer.
type ServerOption func(*server)

type server struct {
	info            mcp.ImplementationInfo
	protocolVersion string
	instructions    *string
	tools           ToolsCapability
}

// NewServer builds a static ServerCapabilities value from options.
func NewServer(opts ...ServerOption) ServerCapabilities {
	s := &server{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithServerInfo sets the implementation info returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *server) { s.info = info }
}

// WithProtocolVersion pins the protocol version answered during initialize.
func WithProtocolVersion(version string) ServerOption {
	return func(s *server) { s.protocolVersion = version }
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(instructions string) ServerOption {
	return func(s *server) { s.instructions = &instructions }
}

// WithToolsCapability wires the tools capability.
func WithToolsCapability(cap ToolsCapability) ServerOption {
	return func(s *server) { s.tools = cap }
}

func (s *server) GetServerInfo(ctx context.Context) (mcp.ImplementationInfo, error) {
	return s.info, nil
}

func (s *server) GetPreferredProtocolVersion(ctx context.Context) (string, bool, error) {
	if s.protocolVersion == "" {
		return "", false, nil
	}
	return s.protocolVersion, true, nil
}

func (s *server) GetInstructions(ctx context.Context) (string, bool, error) {
	if s.instructions == nil {
		return "", false, nil
	}
	return *s.instructions, true, nil
}

func (s *server) GetToolsCapability(ctx context.Context) (ToolsCapability, bool, error) {
	if s.tools == nil {
		return nil, false, nil
	}
	return s.tools, true, nil
}
