package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooperative_RunsInline(t *testing.T) {
	s := NewCooperative()
	assert.False(t, s.Concurrent())

	ran := false
	s.Go(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran, "task completes before Go returns")
	assert.NoError(t, s.Wait())
}

func TestCooperative_FirstErrorWins(t *testing.T) {
	s := NewCooperative()
	first := errors.New("first")

	s.Go(context.Background(), func(context.Context) error { return first })
	s.Go(context.Background(), func(context.Context) error { return errors.New("second") })

	assert.Equal(t, first, s.Wait())
	assert.NoError(t, s.Wait(), "Wait clears the recorded error")
}

func TestPool_RunsAll(t *testing.T) {
	s := NewPool(2)
	assert.True(t, s.Concurrent())

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		s.Go(context.Background(), func(context.Context) error {
			count.Add(1)
			return nil
		})
	}
	require.NoError(t, s.Wait())
	assert.Equal(t, int32(20), count.Load())
}

func TestPool_ReportsError(t *testing.T) {
	s := NewPool(0)
	boom := errors.New("boom")

	s.Go(context.Background(), func(context.Context) error { return boom })
	s.Go(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, s.Wait(), boom)
}

func TestNew(t *testing.T) {
	s, err := New(KindCooperative, 0)
	require.NoError(t, err)
	assert.IsType(t, &Cooperative{}, s)

	s, err = New("POOL", 4)
	require.NoError(t, err)
	assert.IsType(t, &Pool{}, s)

	_, err = New("threads", 1)
	assert.Error(t, err)
}
