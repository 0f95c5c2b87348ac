package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	status := doc.EmbeddingStatus
	if status == "" {
		status = domain.EmbeddingPending
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, text, metadata, embedding_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding_status = excluded.embedding_status,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Text, string(metadataJSON), string(status),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, text, metadata, embedding_status, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	var doc domain.Document
	var metadataJSON, status, createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.Text, &metadataJSON, &status, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	doc.EmbeddingStatus = domain.EmbeddingStatus(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	return &doc, nil
}

// DeleteDocument removes a document. Chunks cascade via foreign key.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// UpsertChunks stores chunks for a document in one transaction.
// The document must exist, and no two chunks may share an index.
func (s *documentStore) UpsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if documentID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Referential integrity: reject writes against missing documents
	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE id = ?", documentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return domain.ErrReferentialIntegrity
	}

	// Load existing (index -> id) assignments to detect collisions
	existing := make(map[int]string)
	rows, err := tx.QueryContext(ctx,
		"SELECT chunk_index, id FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("querying chunk indexes: %w", err)
	}
	for rows.Next() {
		var idx int
		var id string
		if err := rows.Scan(&idx, &id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning chunk index: %w", err)
		}
		existing[idx] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunk indexes: %w", err)
	}

	seen := make(map[int]string, len(chunks))
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return domain.ErrInvalidInput
		}
		if id, ok := existing[chunk.Index]; ok && id != chunk.ID {
			return fmt.Errorf("%w: index %d", domain.ErrDuplicateChunk, chunk.Index)
		}
		if id, ok := seen[chunk.Index]; ok && id != chunk.ID {
			return fmt.Errorf("%w: index %d", domain.ErrDuplicateChunk, chunk.Index)
		}
		seen[chunk.Index] = chunk.ID
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Index,
			chunk.Text, float32SliceToBytes(chunk.Embedding), string(metadataJSON),
			formatTime(createdAt)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, embedding, metadata, created_at
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, chunk_index, text, embedding, metadata, created_at
		FROM chunks WHERE id = ?
	`, id)

	return scanChunkRow(row)
}

// Search computes cosine similarity in-process over candidate chunks.
// Metadata filters are pushed into SQL via json_extract so only
// matching embedded chunks are loaded.
func (s *documentStore) Search(ctx context.Context, queryEmbedding []float32, opts domain.SearchOptions) ([]domain.SimilarityResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if opts.TopK <= 0 {
		return []domain.SimilarityResult{}, nil
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.text, c.embedding, c.metadata, c.created_at,
		       d.metadata
		FROM chunks c
		INNER JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL AND length(c.embedding) > 0
	`
	args := []interface{}{}

	// Exact-match AND-combination over metadata keys. Deterministic
	// clause order keeps query plans stable.
	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query += " AND json_extract(c.metadata, '$.' || ?) = ?"
		args = append(args, k, opts.Filters[k])
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidate chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarityResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		var chunkMetaJSON, docMetaJSON, createdAt string

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text,
			&embeddingBlob, &chunkMetaJSON, &createdAt, &docMetaJSON); err != nil {
			return nil, fmt.Errorf("scanning candidate chunk: %w", err)
		}

		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunk.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(chunkMetaJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}

		score := cosineSimilarity(queryEmbedding, chunk.Embedding)
		if score < opts.MinSimilarity {
			continue
		}

		var docMeta map[string]string
		if err := json.Unmarshal([]byte(docMetaJSON), &docMeta); err != nil {
			return nil, fmt.Errorf("unmarshaling document metadata: %w", err)
		}

		results = append(results, domain.SimilarityResult{
			Chunk:            chunk,
			Similarity:       score,
			DocumentMetadata: docMeta,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidate chunks: %w", err)
	}

	// Descending similarity, ties broken by most recent chunk
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.CreatedAt.After(results[j].Chunk.CreatedAt)
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	if results == nil {
		results = []domain.SimilarityResult{}
	}

	return results, nil
}

// SetEmbeddingStatus updates document-level embedding progress.
func (s *documentStore) SetEmbeddingStatus(ctx context.Context, documentID string, status domain.EmbeddingStatus) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), documentID)
	if err != nil {
		return fmt.Errorf("updating embedding status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetEmbeddingStatus reports document-level embedding progress.
func (s *documentStore) GetEmbeddingStatus(ctx context.Context, documentID string) (domain.EmbeddingStatus, error) {
	var status string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT embedding_status FROM documents WHERE id = ?", documentID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("querying embedding status: %w", err)
	}
	return domain.EmbeddingStatus(status), nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON, createdAt string

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text,
		&embeddingBlob, &metadataJSON, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.CreatedAt = parseTime(createdAt)

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}

// scanChunkRow scans a chunk from *sql.Row.
func scanChunkRow(row *sql.Row) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON, createdAt string

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text,
		&embeddingBlob, &metadataJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.CreatedAt = parseTime(createdAt)

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}
