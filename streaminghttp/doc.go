// Package streaminghttp implements the stateless flavor of the MCP streamable
// HTTP transport. It mounts as a standard net/http handler.
//
// Every POST is self-contained: a fresh engine answers the single JSON-RPC
// message in the body and is then discarded. No Mcp-Session-Id is issued, so
// there is nothing for GET (server-initiated streams) or DELETE (session
// termination) to act on; both answer 405.
//
// Responses are written as application/json unless the client's Accept
// header prefers text/event-stream, in which case the single response is
// framed as one SSE "message" event.
//
// Construction
//
//	h, err := streaminghttp.New(server,
//	    streaminghttp.WithLogger(logger),
//	    streaminghttp.WithRequestContext(func(ctx context.Context, r *http.Request) context.Context {
//	        return context7.WithAPIKey(ctx, context7.APIKeyFromRequest(r))
//	    }),
//	)
//	mux.Handle("/mcp", h)
package streaminghttp
