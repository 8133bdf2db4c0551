// Package stdio implements a single-connection MCP transport over
// stdin/stdout. Messages are newline-delimited JSON-RPC objects.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the configured API key applies
//	Sessions         : one engine for the lifetime of Serve
//	Concurrency      : requests run concurrently; writes are serialized per line
//
// Options allow supplying alternate io.Reader / io.Writer or a custom logger.
//
// Example:
//
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
package stdio
