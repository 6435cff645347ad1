package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hermes/pkg/logger"
)

func newTestLogger() *logger.Logger {
	zapLog, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLog.Sugar()}
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name              string
		config            Config
		expectedThreshold int
		expectedReset     time.Duration
		expectedMin       time.Duration
		expectedMax       time.Duration
		expectedMult      float64
	}{
		{
			name:              "all defaults",
			config:            Config{},
			expectedThreshold: 5,
			expectedReset:     1 * time.Minute,
			expectedMin:       1 * time.Second,
			expectedMax:       5 * time.Minute,
			expectedMult:      2.0,
		},
		{
			name: "custom config",
			config: Config{
				FailureThreshold:  3,
				ResetAfter:        30 * time.Second,
				MinBackoff:        2 * time.Second,
				MaxBackoff:        10 * time.Minute,
				BackoffMultiplier: 3.0,
			},
			expectedThreshold: 3,
			expectedReset:     30 * time.Second,
			expectedMin:       2 * time.Second,
			expectedMax:       10 * time.Minute,
			expectedMult:      3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("openai", tt.config, newTestLogger())

			assert.Equal(t, tt.expectedThreshold, b.cfg.FailureThreshold)
			assert.Equal(t, tt.expectedReset, b.cfg.ResetAfter)
			assert.Equal(t, tt.expectedMin, b.cfg.MinBackoff)
			assert.Equal(t, tt.expectedMax, b.cfg.MaxBackoff)
			assert.Equal(t, tt.expectedMult, b.cfg.BackoffMultiplier)
			assert.Equal(t, StateClosed, b.State())
		})
	}
}

func TestOpensAtThreshold(t *testing.T) {
	b := New("openai", Config{FailureThreshold: 3}, newTestLogger())

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.Equal(t, StateClosed, b.State())

	// Third consecutive failure trips the circuit, exactly once.
	assert.True(t, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Healthy())

	assert.False(t, b.RecordFailure())
	assert.Equal(t, 1, b.Stats().TotalTrips)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New("grok", Config{FailureThreshold: 3}, newTestLogger())

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.RecordSuccess())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "interleaved successes must keep the circuit closed")
}

func TestRecoveryClosesCircuit(t *testing.T) {
	b := New("gemini", Config{FailureThreshold: 1}, newTestLogger())

	require.True(t, b.RecordFailure())
	require.Equal(t, StateOpen, b.State())

	assert.True(t, b.RecordSuccess(), "first success after a trip reports recovery")
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.RecordSuccess(), "further successes are not recoveries")
}

func TestHalfOpenAfterReset(t *testing.T) {
	b := New("anthropic", Config{FailureThreshold: 1, ResetAfter: 10 * time.Millisecond}, newTestLogger())

	require.True(t, b.RecordFailure())
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	// Failed probe keeps the circuit open and restarts the clock.
	assert.False(t, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
}

func TestBackoffGrowthAndCap(t *testing.T) {
	b := New("ollama", Config{
		FailureThreshold:  100,
		MinBackoff:        1 * time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
	}, newTestLogger())

	b.RecordFailure()
	assert.Equal(t, "2s", b.Stats().RetryBackoff)
	b.RecordFailure()
	assert.Equal(t, "4s", b.Stats().RetryBackoff)
	b.RecordFailure()
	assert.Equal(t, "4s", b.Stats().RetryBackoff, "backoff must not exceed the cap")

	b.RecordSuccess()
	assert.Equal(t, "1s", b.Stats().RetryBackoff, "success resets backoff")
}

func TestSetCreatesLazily(t *testing.T) {
	set := NewSet(Config{FailureThreshold: 2})

	first := set.For("openai")
	second := set.For("openai")
	assert.Same(t, first, second)

	set.For("grok").RecordFailure()

	stats := set.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "openai", stats["openai"].Provider)
	assert.Equal(t, 1, stats["grok"].ConsecutiveFailures)
}

func TestSetAllClosed(t *testing.T) {
	set := NewSet(Config{FailureThreshold: 1})
	assert.True(t, set.AllClosed())

	set.For("openai").RecordFailure()
	assert.False(t, set.AllClosed())

	set.For("openai").RecordSuccess()
	assert.True(t, set.AllClosed())
}

func TestManualReset(t *testing.T) {
	b := New("openai", Config{FailureThreshold: 1}, newTestLogger())

	require.True(t, b.RecordFailure())
	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().ConsecutiveFailures)
}
