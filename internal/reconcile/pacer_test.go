package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/reconcile"
)

func TestPacer_Waits(t *testing.T) {
	start := time.Now()
	require.NoError(t, reconcile.NewPacer(20*time.Millisecond).Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPacer_ZeroDelay(t *testing.T) {
	assert.NoError(t, reconcile.NewPacer(0).Wait(context.Background()))
}

func TestPacer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reconcile.NewPacer(time.Minute).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
