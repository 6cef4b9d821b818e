package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(Options{Cron: []string{"not a cron line"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a cron line")

	_, err = New(Options{Cron: []string{"* * * * *", "61 * * * *"}})
	require.Error(t, err)
}

func TestRunOnceWithoutSchedule(t *testing.T) {
	runner, err := New(Options{})
	require.NoError(t, err)

	calls := 0
	runner.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.Equal(t, 1, calls)
}

func TestRunInvokesDueCallbackImmediately(t *testing.T) {
	runner, err := New(Options{
		Cron:         []string{"* * * * *"},
		PollInterval: time.Millisecond * 10,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	runner.Run(ctx, func(ctx context.Context) error {
		calls++
		if calls >= 2 {
			cancel()
		}
		return nil
	})

	require.GreaterOrEqual(t, calls, 2)
	require.Less(t, time.Since(start), time.Second)
}

func TestRunSkipsWhenNotDue(t *testing.T) {
	// a schedule that can never match the frozen clock
	frozen := time.Date(2030, time.January, 1, 10, 30, 0, 0, time.UTC)
	runner, err := New(Options{
		Cron:         []string{"0 4 * * *"},
		PollInterval: time.Millisecond,
		Now:          func() time.Time { return frozen },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()

	calls := 0
	runner.Run(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.Equal(t, 0, calls)
}

func TestCallbackErrorForwardedAndLoopContinues(t *testing.T) {
	var reported []error
	runner, err := New(Options{
		Cron:         []string{"* * * * *"},
		PollInterval: time.Millisecond,
		OnError: func(ctx context.Context, err error) {
			reported = append(reported, err)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	runner.Run(ctx, func(ctx context.Context) error {
		calls++
		if calls >= 3 {
			cancel()
			return nil
		}
		return fmt.Errorf("boom %d", calls)
	})

	require.Equal(t, 3, calls)
	require.Len(t, reported, 2)
	require.Contains(t, reported[0].Error(), "boom 1")
}

func TestCallbackPanicForwarded(t *testing.T) {
	var reported []error
	runner, err := New(Options{
		OnError: func(ctx context.Context, err error) {
			reported = append(reported, err)
		},
	})
	require.NoError(t, err)

	runner.Run(context.Background(), func(ctx context.Context) error {
		panic("unexpected state")
	})

	require.Len(t, reported, 1)
	require.Contains(t, reported[0].Error(), "unexpected state")
	require.False(t, runner.Executing())
}

func TestExecutingFlag(t *testing.T) {
	runner, err := New(Options{})
	require.NoError(t, err)

	require.False(t, runner.Executing())
	runner.Run(context.Background(), func(ctx context.Context) error {
		require.True(t, runner.Executing())
		return nil
	})
	require.False(t, runner.Executing())
}
