package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, 8)

	var got []time.Duration
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, d)
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	assert.Equal(t, want, got)
	assert.True(t, b.GaveUp())
	assert.Equal(t, 8, b.Attempt())

	_, ok := b.Next()
	assert.False(t, ok, "gave-up state is terminal until Reset")
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, 3)
	b.Next()
	b.Next()
	b.Reset()

	assert.Equal(t, 0, b.Attempt())
	d, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestBackoffDelayDoesNotOverflow(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, 0)
	assert.Equal(t, 10*time.Second, b.Delay(200))

	// MaxAttempts of zero never gives up.
	for i := 0; i < 100; i++ {
		_, ok := b.Next()
		assert.True(t, ok)
	}
}
