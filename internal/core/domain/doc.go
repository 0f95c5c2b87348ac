// Package domain defines the core business entities for Fiscalia.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A fiscal document admitted to the pipeline
//   - Chunk: A retrievable unit of document text with its embedding
//   - EmbeddingJob: A unit of asynchronous embedding work
//   - CacheEntry: A cached analysis answer with expiry
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
