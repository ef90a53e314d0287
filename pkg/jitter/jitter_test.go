package jitter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Duration(100*time.Millisecond, DefaultJitter)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}

func TestDurationWithSeed_Deterministic(t *testing.T) {
	a := DurationWithSeed(time.Second, 0.5, rand.New(rand.NewPCG(1, 2)))
	b := DurationWithSeed(time.Second, 0.5, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, a, b)
}

func TestExponentialBackoff_Caps(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(100*time.Millisecond, time.Second, 0, 0))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(100*time.Millisecond, time.Second, 2, 0))
	assert.Equal(t, time.Second, ExponentialBackoff(100*time.Millisecond, time.Second, 10, 0))
}
