package eta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculator_ConvergesToSteadyRate(t *testing.T) {
	start := time.Now()
	c := NewCalculator(start)

	// 10 items/sec for several samples; EMA should settle near 10.
	now := start
	var rate float64
	for i := 1; i <= 20; i++ {
		now = now.Add(time.Second)
		rate = c.Update(int64(i*10), now)
	}
	require.InDelta(t, 10.0, rate, 1.0)
}

func TestCalculator_ETAZeroWhenNoRateYet(t *testing.T) {
	c := NewCalculator(time.Now())
	require.Equal(t, time.Duration(0), c.ETA(100))
}

func TestCalculator_ETAZeroWhenNothingRemaining(t *testing.T) {
	start := time.Now()
	c := NewCalculator(start)
	c.Update(10, start.Add(time.Second))
	require.Equal(t, time.Duration(0), c.ETA(0))
}

func TestCalculator_ETAMatchesRemainingOverRate(t *testing.T) {
	start := time.Now()
	c := NewCalculator(start)
	rate := c.Update(100, start.Add(10*time.Second))
	require.Greater(t, rate, 0.0)

	eta := c.ETA(50)
	expectedSeconds := float64(50) / rate
	expected := time.Duration(expectedSeconds * float64(time.Second))
	require.InDelta(t, float64(expected), float64(eta), float64(time.Millisecond)*10)
}
