package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// NewCircuitBreaker
// ---------------------------------------------------------------------------

func TestNewCircuitBreaker(t *testing.T) {
	tests := []struct {
		name            string
		threshold       int
		recoveryTimeout time.Duration
		wantThreshold   int
		wantRecovery    time.Duration
	}{
		{
			name:            "zero values corrected to defaults",
			threshold:       0,
			recoveryTimeout: 0,
			wantThreshold:   5,
			wantRecovery:    60 * time.Second,
		},
		{
			name:            "negative values corrected to defaults",
			threshold:       -3,
			recoveryTimeout: -time.Second,
			wantThreshold:   5,
			wantRecovery:    60 * time.Second,
		},
		{
			name:            "custom values preserved",
			threshold:       3,
			recoveryTimeout: 10 * time.Second,
			wantThreshold:   3,
			wantRecovery:    10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCircuitBreaker(tt.threshold, tt.recoveryTimeout, zap.NewNop())
			require.NotNil(t, b)
			assert.Equal(t, StateClosed, b.State())
			assert.Equal(t, tt.wantThreshold, b.threshold)
			assert.Equal(t, tt.wantRecovery, b.recoveryTimeout)
		})
	}
}

func TestNewCircuitBreaker_NilLogger(t *testing.T) {
	b := NewCircuitBreaker(3, time.Second, nil)
	require.NotNil(t, b)
	assert.True(t, b.Allow())
}

// ---------------------------------------------------------------------------
// State.String()
// ---------------------------------------------------------------------------

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

// ---------------------------------------------------------------------------
// Closed -> Open (failure threshold)
// ---------------------------------------------------------------------------

func TestBreaker_ClosedToOpen(t *testing.T) {
	threshold := 3
	b := NewCircuitBreaker(threshold, time.Hour, zap.NewNop())

	// Fail threshold-1 times: still closed, still allowing
	for i := 0; i < threshold-1; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	}

	// One more failure trips the breaker
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

// ---------------------------------------------------------------------------
// Open rejects until the recovery window elapses
// ---------------------------------------------------------------------------

func TestBreaker_OpenRejects(t *testing.T) {
	b := NewCircuitBreaker(1, time.Hour, zap.NewNop())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	for i := 0; i < 5; i++ {
		assert.False(t, b.Allow())
	}
	assert.Equal(t, StateOpen, b.State())
}

// ---------------------------------------------------------------------------
// Open -> HalfOpen (after recovery timeout)
// ---------------------------------------------------------------------------

func TestBreaker_OpenToHalfOpen(t *testing.T) {
	b := NewCircuitBreaker(1, 50*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)

	// First caller after the window gets the probe slot
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

// ---------------------------------------------------------------------------
// HalfOpen admits exactly one probe
// ---------------------------------------------------------------------------

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 50*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	time.Sleep(80 * time.Millisecond)

	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	// Probe still in flight: everyone else is rejected
	assert.False(t, b.Allow())
	assert.False(t, b.Allow())
}

// ---------------------------------------------------------------------------
// HalfOpen -> Closed (probe success)
// ---------------------------------------------------------------------------

func TestBreaker_HalfOpenToClosed(t *testing.T) {
	b := NewCircuitBreaker(1, 50*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	time.Sleep(80 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Status().FailureCount)
	assert.True(t, b.Allow())
}

// ---------------------------------------------------------------------------
// HalfOpen -> Open (probe failure restarts the recovery window)
// ---------------------------------------------------------------------------

func TestBreaker_HalfOpenToOpen(t *testing.T) {
	b := NewCircuitBreaker(1, 50*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	time.Sleep(80 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State())
	// Window restarted: immediately rejecting again
	assert.False(t, b.Allow())

	// And a second probe is admitted after the window elapses once more
	time.Sleep(80 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

// ---------------------------------------------------------------------------
// Failures while already open do not extend the recovery window
// ---------------------------------------------------------------------------

func TestBreaker_OpenFailureKeepsWindow(t *testing.T) {
	b := NewCircuitBreaker(1, 100*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(50 * time.Millisecond)
	b.RecordFailure()

	time.Sleep(70 * time.Millisecond)
	assert.True(t, b.Allow(), "recovery window should be measured from the original trip")
}

// ---------------------------------------------------------------------------
// Success resets failure count in Closed state
// ---------------------------------------------------------------------------

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, zap.NewNop())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

// ---------------------------------------------------------------------------
// Reset
// ---------------------------------------------------------------------------

func TestBreaker_Reset(t *testing.T) {
	b := NewCircuitBreaker(1, time.Hour, zap.NewNop())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Status().FailureCount)
	assert.True(t, b.Allow())
}

func TestBreaker_ResetFromClosed(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, zap.NewNop())

	b.RecordFailure()
	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Status().FailureCount)
}

// ---------------------------------------------------------------------------
// Status snapshot
// ---------------------------------------------------------------------------

func TestBreaker_Status(t *testing.T) {
	b := NewCircuitBreaker(2, time.Hour, zap.NewNop())

	st := b.Status()
	assert.Equal(t, "CLOSED", st.State)
	assert.Equal(t, 0, st.FailureCount)

	b.RecordFailure()
	st = b.Status()
	assert.Equal(t, "CLOSED", st.State)
	assert.Equal(t, 1, st.FailureCount)

	b.RecordFailure()
	st = b.Status()
	assert.Equal(t, "OPEN", st.State)
	assert.Equal(t, 2, st.FailureCount)
}

// ---------------------------------------------------------------------------
// OnStateChange callback
// ---------------------------------------------------------------------------

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []struct{ from, to State }

	b := NewCircuitBreaker(2, 50*time.Millisecond, zap.NewNop())
	b.onStateChange = func(from, to State) {
		mu.Lock()
		transitions = append(transitions, struct{ from, to State }{from, to})
		mu.Unlock()
	}

	// Trip: Closed -> Open
	b.RecordFailure()
	b.RecordFailure()

	// Wait for the window, then probe and recover: Open -> HalfOpen -> Closed
	time.Sleep(80 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordSuccess()

	// Give async callbacks time to execute
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(transitions), 3)
	assert.Equal(t, StateClosed, transitions[0].from)
	assert.Equal(t, StateOpen, transitions[0].to)
}

// ---------------------------------------------------------------------------
// Concurrent safety
// ---------------------------------------------------------------------------

func TestBreaker_ConcurrentAllow(t *testing.T) {
	b := NewCircuitBreaker(100, time.Hour, zap.NewNop())

	var wg sync.WaitGroup
	var allowed atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
				b.RecordSuccess()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(50), allowed.Load())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ConcurrentHalfOpenProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, zap.NewNop())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	time.Sleep(30 * time.Millisecond)

	// All callers race for the single probe slot
	var wg sync.WaitGroup
	var allowed atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(1), allowed.Load(), "exactly one caller may probe in half-open")
	assert.Equal(t, StateHalfOpen, b.State())
}
