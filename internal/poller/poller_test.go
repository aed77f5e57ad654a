package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMachine создаёт машину с детерминированным джиттером: фактор ровно 1.0.
func newTestMachine() *Machine {
	return NewMachine(Config{
		BaseInterval: 5 * time.Second,
		MaxInterval:  60 * time.Second,
		Rand:         func() float64 { return 0.5 },
	})
}

func tickAndStart(t *testing.T, m *Machine) {
	t.Helper()
	start, _ := m.Tick()
	require.True(t, start, "tick must start a request")
	require.Equal(t, StatePolling, m.State())
}

func TestBackoffSequenceOnFailures(t *testing.T) {
	m := newTestMachine()

	wantDelays := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second, // потолок
		60 * time.Second,
	}

	for _, want := range wantDelays {
		tickAndStart(t, m)
		delay, reschedule := m.Failure()
		require.True(t, reschedule)
		assert.Equal(t, want, delay)
	}

	// Один успех сбрасывает выдержку к базовой.
	tickAndStart(t, m)
	delay, reschedule := m.Success()
	require.True(t, reschedule)
	assert.Equal(t, 5*time.Second, delay)
}

func TestJitterBounds(t *testing.T) {
	low := NewMachine(Config{
		BaseInterval: 5 * time.Second,
		Rand:         func() float64 { return 0 },
	})
	tickAndStart(t, low)
	delay, _ := low.Success()
	assert.Equal(t, 4*time.Second, delay, "lower jitter bound is 0.8x")

	high := NewMachine(Config{
		BaseInterval: 5 * time.Second,
		Rand:         func() float64 { return 1 },
	})
	tickAndStart(t, high)
	delay, _ = high.Success()
	assert.Equal(t, 6*time.Second, delay, "upper jitter bound is 1.2x")
}

func TestTickWhileInFlightReschedules(t *testing.T) {
	m := newTestMachine()

	tickAndStart(t, m)

	start, retry := m.Tick()
	assert.False(t, start, "second tick must not start a concurrent request")
	assert.Equal(t, 5*time.Second, retry)
}

func TestCancellationDoesNotGrowBackoff(t *testing.T) {
	m := newTestMachine()

	// Доводим выдержку до 10 секунд одним сбоем.
	tickAndStart(t, m)
	_, _ = m.Failure()
	require.Equal(t, 10*time.Second, m.Interval())

	tickAndStart(t, m)
	delay, reschedule := m.Cancelled()
	require.True(t, reschedule)
	assert.Equal(t, 10*time.Second, delay, "cancellation reschedules at the current interval")
	assert.Equal(t, 10*time.Second, m.Interval(), "cancellation must not double the interval")
}

func TestSuspendStopsPolling(t *testing.T) {
	m := newTestMachine()

	tickAndStart(t, m)
	m.Suspend()

	// Завершение отменённого запроса не перепланирует тик.
	_, reschedule := m.Cancelled()
	assert.False(t, reschedule)

	start, retry := m.Tick()
	assert.False(t, start)
	assert.Zero(t, retry)
	assert.Equal(t, StateSuspended, m.State())
}

func TestSuspendSwallowsLateResult(t *testing.T) {
	m := newTestMachine()

	tickAndStart(t, m)
	m.Suspend()

	// Запрос успел завершиться успехом уже после приостановки.
	_, reschedule := m.Success()
	assert.False(t, reschedule)
	assert.Equal(t, StateSuspended, m.State())
}

func TestResumeFiresImmediately(t *testing.T) {
	m := newTestMachine()

	m.Suspend()
	require.True(t, m.Resume(), "resume from suspended must request an immediate tick")
	assert.Equal(t, StateIdle, m.State())

	start, _ := m.Tick()
	assert.True(t, start)
}

func TestResumeWhenNotSuspended(t *testing.T) {
	m := newTestMachine()
	assert.False(t, m.Resume(), "resume is a no-op when polling is active")
}

func TestFailureKeepsGrowingFromCancelled(t *testing.T) {
	m := newTestMachine()

	tickAndStart(t, m)
	_, _ = m.Failure() // 10s
	tickAndStart(t, m)
	_, _ = m.Cancelled() // всё ещё 10s
	tickAndStart(t, m)
	delay, _ := m.Failure()
	assert.Equal(t, 20*time.Second, delay)
}
