package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

// newTestStore opens a store against a throwaway directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() }) //nolint:errcheck
	return store
}

func testDocument(id string) *domain.Document {
	return &domain.Document{
		ID:              id,
		Text:            "Nota fiscal de serviço prestado em São Paulo.",
		Metadata:        map[string]string{"document_type": "NFSe"},
		EmbeddingStatus: domain.EmbeddingPending,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestNewStore_CreatesSchema(t *testing.T) {
	store := newTestStore(t)
	assert.NotEmpty(t, store.Path())

	// Migrations are idempotent: reopening the same directory works.
	again, err := NewStore(store.Path()[:len(store.Path())-len("/fiscalia.db")])
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.14159, 0}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs score zero instead of erroring.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	assert.True(t, parseTime(formatTime(now)).Equal(now))
	assert.True(t, parseTime("garbage").IsZero())
}

func TestFormatTime_StringOrderMatchesTimeOrder(t *testing.T) {
	// SQL compares these strings lexicographically, so formatting must
	// be fixed-width. A whole second would otherwise render shorter
	// than a fractional one and sort after it.
	whole := time.Date(2026, 8, 29, 12, 0, 5, 0, time.UTC)
	cases := []struct {
		earlier, later time.Time
	}{
		{whole, whole.Add(500 * time.Millisecond)},
		{whole.Add(-time.Nanosecond), whole},
		{whole.Add(250 * time.Millisecond), whole.Add(time.Second)},
	}
	for _, tc := range cases {
		assert.Less(t, formatTime(tc.earlier), formatTime(tc.later))
	}
	assert.Len(t, formatTime(whole), len(formatTime(whole.Add(time.Nanosecond))))
}
