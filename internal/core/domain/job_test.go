package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, BackoffBase, RetryBackoff(1))
	assert.Equal(t, 2*BackoffBase, RetryBackoff(2))
	assert.Equal(t, 4*BackoffBase, RetryBackoff(3))

	// Zero and negative attempts are treated as the first attempt.
	assert.Equal(t, BackoffBase, RetryBackoff(0))
	assert.Equal(t, BackoffBase, RetryBackoff(-5))
}

func TestRetryBackoff_MonotonicUntilCap(t *testing.T) {
	prev := time.Duration(0)
	for attempts := 1; attempts <= 12; attempts++ {
		d := RetryBackoff(attempts)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempts)
		assert.LessOrEqual(t, d, BackoffCap)
		prev = d
	}
	assert.Equal(t, BackoffCap, RetryBackoff(12))
}

func TestEmbeddingJob_Terminal(t *testing.T) {
	assert.True(t, (&EmbeddingJob{Status: JobFailed}).Terminal())
	assert.False(t, (&EmbeddingJob{Status: JobPending}).Terminal())
	assert.False(t, (&EmbeddingJob{Status: JobProcessing}).Terminal())
	assert.False(t, (&EmbeddingJob{Status: JobCompleted}).Terminal())
}
