package cli

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/fiscalia/internal/core/domain"
)

func TestOutputSearchText_TruncatesOnRunes(t *testing.T) {
	// Accented text where byte offsets fall inside multi-byte runes.
	long := strings.Repeat("prestação de serviços à munícipe ", 10)
	require.Greater(t, len([]rune(long)), 160)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := outputSearchText(cmd, []domain.SimilarityResult{
		{Chunk: domain.Chunk{ID: "c-1", DocumentID: "doc-1", Index: 0, Text: long}, Similarity: 0.9},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, utf8.ValidString(out), "snippet must not end mid-rune")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, long, "long text is truncated")
}

func TestOutputSearchText_EmptyResults(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, outputSearchText(cmd, nil))
	assert.Contains(t, buf.String(), "No results found.")
}
