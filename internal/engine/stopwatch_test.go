package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arborplan/thts/internal/engine"
)

func TestStopwatchPauseExcludesElapsedTime(t *testing.T) {
	sw := engine.NewStopwatch()
	time.Sleep(5 * time.Millisecond)
	sw.Pause()
	paused := sw.Elapsed()
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, paused, sw.Elapsed())

	sw.Resume()
	time.Sleep(5 * time.Millisecond)
	require.Greater(t, sw.Elapsed(), paused)
}

func TestStopwatchReset(t *testing.T) {
	sw := engine.NewStopwatch()
	time.Sleep(5 * time.Millisecond)
	sw.Reset()
	require.Less(t, sw.Elapsed(), 5*time.Millisecond)
}
