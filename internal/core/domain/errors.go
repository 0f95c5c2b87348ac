package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates a document with no text was submitted.
	// Rejected immediately, never retried.
	ErrEmptyDocument = errors.New("document text is empty")

	// ErrReferentialIntegrity indicates a chunk write referenced a
	// document that does not exist. Rejected, not retried.
	ErrReferentialIntegrity = errors.New("chunk references nonexistent document")

	// ErrDuplicateChunk indicates a second chunk with the same
	// (document_id, chunk_index) pair.
	ErrDuplicateChunk = errors.New("duplicate chunk index for document")

	// Embedding provider errors.

	// ErrProviderUnavailable indicates a single embedding provider
	// failed (timeout, quota, unreachable). Transient: the gateway
	// falls through to the next provider.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrRateLimited indicates a provider's request budget is spent.
	// Treated as unavailable for that call.
	ErrRateLimited = errors.New("rate limited")

	// ErrDimensionMismatch indicates a provider returned a vector whose
	// dimension does not match the configured store dimension. Fatal
	// configuration error: mixing dimensions silently corrupts the
	// vector store, so this is never retried across providers.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrAllProvidersExhausted indicates every configured provider
	// failed for one embed call. At the job level this counts as a
	// transient failure toward the attempt budget.
	ErrAllProvidersExhausted = errors.New("all embedding providers exhausted")

	// Job queue errors.

	// ErrJobTerminal indicates an operation on a job that already
	// reached its terminal failed state.
	ErrJobTerminal = errors.New("job is terminally failed")

	// ErrNoJobAvailable indicates no claimable job exists right now.
	// Normal control flow for polling workers, not a failure.
	ErrNoJobAvailable = errors.New("no job available")

	// Generation errors.

	// ErrGeneration indicates the generative model call failed.
	// Surfaced to the caller without caching a partial answer;
	// retry policy belongs to the caller.
	ErrGeneration = errors.New("generation failed")

	// ErrLLMUnavailable indicates no generative model is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates no embedding service is
	// configured. Semantic retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)
