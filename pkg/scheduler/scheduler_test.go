package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddValidatesSchedule(t *testing.T) {
	s := New(nil, 0)
	require.NoError(t, s.Add("refresh", "@every 30m", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("refresh", "@every 1m", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("bad", "not a schedule", func(context.Context) error { return nil }))
}

func TestScheduler_RunNowRecordsStatus(t *testing.T) {
	s := New(nil, time.Second)
	calls := 0
	require.NoError(t, s.Add("refresh", "@every 1h", func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("missing deadline")
		}
		if calls == 2 {
			return errors.New("upstream down")
		}
		return nil
	}))

	require.NoError(t, s.RunNow("refresh"))
	assert.EqualError(t, s.RunNow("refresh"), "upstream down")
	assert.Error(t, s.RunNow("missing"))

	st := s.Status()
	require.Len(t, st, 1)
	assert.Equal(t, 2, st[0].Runs)
	assert.Equal(t, "upstream down", st[0].LastErr)
	assert.False(t, st[0].Running)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := New(nil, 0)
	done := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run")
	}
}
