package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trippyConfig(timeout time.Duration) *Config {
	cfg := DefaultConfig("test-party")
	cfg.Timeout = timeout
	return cfg
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(DefaultConfig("party"))
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_TripsAfterFailureThreshold(t *testing.T) {
	b := New(trippyConfig(30 * time.Second))

	// Five straight failures: >=5 requests with >50% failure ratio.
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Allow())
		b.Record(false)
	}

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_StaysClosedOnMixedOutcomes(t *testing.T) {
	b := New(trippyConfig(30 * time.Second))

	// Exactly 50% failures never exceeds the >50% trip ratio.
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Allow())
		b.Record(i%2 == 0)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New(trippyConfig(10 * time.Millisecond))

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Allow(), "half-open admits a probe")
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := New(trippyConfig(10 * time.Millisecond))

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// MaxRequests consecutive successful probes close the breaker.
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(true)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(trippyConfig(10 * time.Millisecond))

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Allow())
	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b := New(trippyConfig(10 * time.Millisecond))

	for i := 0; i < 5; i++ {
		b.Record(false)
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// Two in-flight probes are allowed (MaxRequests), a third is not.
	require.NoError(t, b.Allow())
	b.Record(true)
	require.NoError(t, b.Allow())
	// Second probe still pending; counts show one request so far.
	assert.Equal(t, uint32(1), b.Counts().Requests)
}

func TestBreaker_NilConfigUsesDefaults(t *testing.T) {
	b := New(nil)
	assert.Equal(t, "default", b.Name())
	assert.NoError(t, b.Allow())
}

func TestCounts_FailureRatio(t *testing.T) {
	assert.Zero(t, Counts{}.FailureRatio())
	assert.Equal(t, 0.75, Counts{Requests: 4, TotalFailures: 3}.FailureRatio())
}
