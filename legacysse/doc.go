// Package legacysse implements the deprecated HTTP+SSE MCP transport.
//
// A client opens a long-lived GET stream and receives an "endpoint" event
// naming the URL it must POST its messages to. Every POST is acknowledged
// with 202 and its response, if any, is delivered on the stream as a
// "message" event. Sessions are process-local and live exactly as long as
// their GET stream.
package legacysse
