package featureprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrows(t *testing.T) {
	b := newBackoff()

	first := b.next()
	second := b.next()
	third := b.next()

	assert.Greater(t, second, first)
	assert.Greater(t, third, second)
}

func TestBackoffIsCapped(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 20; i++ {
		b.next()
	}
	assert.LessOrEqual(t, b.current, 2*maxBackoff)
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff()
	b.next()
	assert.Greater(t, b.current, initialBackoff)

	b.reset()
	assert.Equal(t, initialBackoff, b.current)
}
