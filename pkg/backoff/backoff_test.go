package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextGrowsExponentially(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Minute, Factor: 2}

	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 4*time.Second, b.Next(3))
	assert.Equal(t, 8*time.Second, b.Next(4))
}

func TestNextCapsAtMax(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 5 * time.Second, Factor: 2}

	for attempt := 4; attempt < 20; attempt++ {
		assert.Equal(t, 5*time.Second, b.Next(attempt), "attempt %d", attempt)
	}
}

func TestNextJitterStaysBounded(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		d := b.Next(3)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestNextZeroAttemptTreatedAsFirst(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Minute, Factor: 2}

	assert.Equal(t, b.Next(1), b.Next(0))
	assert.Equal(t, b.Next(1), b.Next(-3))
}
