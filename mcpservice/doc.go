// Package mcpservice is the capability surface the engine consults when it
// answers initialize, tools/list and tools/call.
//
// A server is assembled from options:
//
//	type EchoArgs struct {
//		Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//
//	echo := mcpservice.NewTool[EchoArgs]("echo",
//		func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//			return w.AppendText(r.Args().Message)
//		},
//		mcpservice.WithToolDescription("Echo a message back"),
//	)
//
//	srv := mcpservice.NewServer(
//		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//		mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(echo)),
//	)
//
// Input schemas are reflected from the argument struct with
// github.com/invopop/jsonschema; arguments are decoded strictly unless
// WithToolAllowAdditionalProperties is set.
package mcpservice
