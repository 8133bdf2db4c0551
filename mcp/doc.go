// Package mcp holds the Model Context Protocol wire types used by this
// server: method names, the initialize handshake, and the tools surface.
//
// The package carries no transport logic. stdio, streaminghttp and legacysse
// each frame these types their own way; the internal engine builds them from
// the capabilities exposed by mcpservice.
//
// Only the subset of the protocol the documentation server speaks is modelled
// here. Unknown methods are answered with "method not found" by the engine
// rather than being described by types in this package.
package mcp
