// Package types provides shared type definitions for the agentic search MCP server.
//
// This package defines the backend-agnostic domain types exchanged between the
// backend clients, the search orchestrator and the MCP protocol surface.
//
// # Hits and Source Text
//
// Every backend returns its own hit shape. A vector hit carries the similarity
// score, the stored payload and the stored vector:
//
//	hit := types.VectorHit{
//	    Score:   0.83,
//	    Payload: map[string]json.RawMessage{"source": []byte(`"Gaianet is ..."`)},
//	}
//
// A keyword hit is one row of the full-text table:
//
//	hit := types.KeywordHit{ID: 1, Title: "Gaianet", Content: "Gaianet is ..."}
//
// Before merging, both are reduced to a flat source text string. For vector
// hits that is the value of the operator-configured payload field; for keyword
// hits it is the row content.
//
// # Errors
//
// The error taxonomy is shared by every component:
//
//   - ErrUnconfigured: no backend configured (startup error)
//   - BackendNotFoundError: the keyword table does not exist
//   - UpstreamError: network, HTTP, database or decode failure of a backend
//   - PayloadFieldError: a vector hit lacks the configured payload field
//
// An empty result is never an error.
package types
