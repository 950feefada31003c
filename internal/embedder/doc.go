// Package embedder turns search queries into vectors using an
// OpenAI-compatible embedding service.
//
// # Basic Usage
//
//	emb, err := embedder.NewOpenAIProvider(embedder.Config{
//	    BaseURL: "http://127.0.0.1:8080",
//	    APIKey:  os.Getenv("EMBEDDING_SERVICE_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "What's Gaianet?",
//	})
//	fmt.Printf("Vector dimension: %d\n", result.Dimension)
//
// The request goes to {BaseURL}/v1/embeddings with the query as the single
// input. The Authorization header is sent only when an API key is set.
//
// # Caching
//
// Query embeddings can be cached in memory with LRU eviction by setting
// Config.CacheSize. The cache key is a SHA-256 of the model name and text.
// Caching is off by default, so every search issues exactly one embedding
// request.
//
// # Retries
//
// Config.MaxAttempts enables exponential backoff (100ms doubling up to 5s).
// The default of one attempt never retries. Context cancellation stops
// retrying immediately.
//
// # Errors
//
// Every failure wraps ErrProviderFailed. Transport errors, non-2xx responses
// and responses without embeddings are all reported this way, with the HTTP
// status and service message kept in the error text.
package embedder
