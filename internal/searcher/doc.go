// Package searcher orchestrates one search request across the vector and
// keyword backends.
//
// The mode is fixed at construction from the backends that are wired in:
//   - vector: embed the query, search the vector index, read the payload field
//   - keyword: extract keywords with a chat model, run a full-text search
//   - combined: run both legs concurrently and merge the results
//
// # Basic Usage
//
//	s := searcher.New(searcher.Options{
//	    Embedder:     emb,
//	    Vector:       qdrant,
//	    PayloadField: "text",
//	    Extractor:    extractor,
//	    Keywords:     store,
//	    Timeout:      30 * time.Second,
//	})
//
//	resp, err := s.Search(ctx, "What's Gaianet?")
//	for _, text := range resp.Results {
//	    fmt.Println(text)
//	}
//
// # Merging
//
// In combined mode, two non-empty result lists are merged as a set union by
// exact string equality. Order is first-seen, vector results first; neither
// backend's ranking survives the merge. If only one list is non-empty it is
// returned as-is, and two empty lists give an empty, successful response.
//
// # Failures
//
// A leg returning zero hits is a success and logs a warning. A leg failing
// is fatal for the request by default, and the other leg is cancelled. With
// Options.DegradeOnPartialFailure the surviving leg's results are returned
// together with a warning in SearchResponse.Warnings. When both legs fail the
// errors are joined.
//
// Errors are typed (see pkg/types): *types.UpstreamError for transport and
// protocol failures, *types.BackendNotFoundError for a missing keyword table,
// *types.PayloadFieldError for a vector hit without a usable payload field,
// and types.ErrUnconfigured when no backend is wired in.
//
// # Concurrency
//
// A Searcher is immutable after New and may serve any number of concurrent
// requests. Each request runs under the caller's context plus Options.Timeout;
// cancelling it aborts all in-flight backend calls.
package searcher
