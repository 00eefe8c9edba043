package lifecycle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JaimeStill/sectional/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	assert.False(t, lc.Ready())

	lc.WaitForStartup()
	assert.True(t, lc.Ready())
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() { count.Add(1) })
	}
	lc.WaitForStartup()

	assert.Equal(t, int32(3), count.Load())
}

func TestShutdownWaitsForBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	lc := lifecycle.New()

	var stopped, cleaned atomic.Bool
	started := make(chan struct{})
	lc.OnBackground(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		stopped.Store(true)
	})
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	<-started
	require.NoError(t, lc.Shutdown(5*time.Second))
	assert.True(t, stopped.Load())
	assert.True(t, cleaned.Load())
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()
	release := make(chan struct{})
	defer close(release)

	lc.OnShutdown(func() {
		<-release
	})

	err := lc.Shutdown(10 * time.Millisecond)
	assert.ErrorContains(t, err, "shutdown timeout")
}
