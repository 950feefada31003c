// Package mcp implements the Model Context Protocol (MCP) server for agentic search.
//
// The server exposes a single tool and a single prompt to MCP clients:
//   - search (tool): run a query against the configured backends and return source texts
//   - search (prompt): return the operator-configured instruction for the search tool
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol. Three transports are supported:
//
//	stdio        newline-delimited JSON-RPC on stdin/stdout
//	sse          GET /sse for the event stream, POST /message for requests
//	stream-http  POST /mcp (streamable HTTP)
//
// HTTP transports are mounted on a chi router that also serves /healthz
// and /metrics.
//
// # Basic Usage
//
//	agentic-search serve --config config.yaml
//	agentic-search serve --config config.yaml --transport stream-http --addr 127.0.0.1:8009
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {
//	    "query": "What's Gaianet?"
//	  }
//	}
//
//	Response:
//	{
//	  "content": [{"type": "text", "text": "Gaianet is ...\nGaianet nodes ..."}],
//	  "structuredContent": {
//	    "results": ["Gaianet is ...", "Gaianet nodes ..."],
//	    "mode": "combined"
//	  }
//	}
//
// An empty result is a success whose text is "No results found". When
// degradation is enabled and one leg fails, structuredContent carries a
// "warnings" array and the text ends with the warnings.
//
// # Error Handling
//
// Backend failures (upstream service errors, a missing keyword table, an
// unusable vector payload, timeouts) are returned as tool results with
// isError set, so the calling model sees the message. Protocol errors use
// standard JSON-RPC codes:
//   - -32602: Invalid params (missing query, unknown prompt)
//   - -32603: Internal error
//
// # Logging
//
// Logs go to stderr; stdout is reserved for the stdio transport. Each tool
// call logs through a request-scoped logger carrying the request ID (HTTP)
// and the MCP session ID.
package mcp
