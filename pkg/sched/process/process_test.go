package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/schederr"
)

func TestNewProcessIsReady(t *testing.T) {
	p := New(1001, "p1001", 5, 64)
	require.Equal(t, Ready, p.State())
	require.Equal(t, -1, p.CoreID())
	require.Equal(t, 0, p.CommandCounter())
	require.False(t, p.IsFinished())
}

func TestExecuteOneAdvancesCounterAndFinishes(t *testing.T) {
	p := New(1, "p", 3, 16)
	p.SetState(Running)

	for i := 1; i <= 2; i++ {
		require.NoError(t, p.ExecuteOne(0))
		require.Equal(t, i, p.CommandCounter())
		require.False(t, p.IsFinished())
	}

	require.NoError(t, p.ExecuteOne(0))
	require.Equal(t, 3, p.CommandCounter())
	require.True(t, p.IsFinished())
	require.False(t, p.EndedAt().IsZero())
}

func TestExecuteOneNoOpWhenNotRunning(t *testing.T) {
	p := New(1, "p", 3, 16)
	require.NoError(t, p.ExecuteOne(0))
	require.Equal(t, 0, p.CommandCounter())
	require.Equal(t, Ready, p.State())
}

func TestExecuteOneAfterFinishedReturnsError(t *testing.T) {
	p := New(1, "p", 1, 16)
	p.SetState(Running)
	require.NoError(t, p.ExecuteOne(0))
	require.True(t, p.IsFinished())

	err := p.ExecuteOne(0)
	require.ErrorIs(t, err, schederr.AlreadyFinished)
}

func TestSetStartTimeOnlyStampsOnce(t *testing.T) {
	old := Clock
	defer func() { Clock = old }()

	t1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	Clock = func() time.Time { return t1 }
	p := New(1, "p", 1, 16)

	p.SetStartTime()
	require.Equal(t, t1, p.StartedAt())

	t2 := t1.Add(time.Hour)
	Clock = func() time.Time { return t2 }
	p.SetStartTime()
	require.Equal(t, t1, p.StartedAt())
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 5, 13, 30, 0, 0, time.UTC)
	require.Equal(t, "03/05/2026 01:30:00 PM", FormatTimestamp(ts))
	require.Equal(t, "", FormatTimestamp(time.Time{}))
}

func TestInvariantCounterBoundedByTotal(t *testing.T) {
	p := New(1, "p", 2, 16)
	p.SetState(Running)
	for i := 0; i < 10; i++ {
		_ = p.ExecuteOne(0)
		c := p.CommandCounter()
		require.GreaterOrEqual(t, c, 0)
		require.LessOrEqual(t, c, p.TotalInstructions())
		require.Equal(t, p.IsFinished(), c == p.TotalInstructions() && c > 0)
	}
}
