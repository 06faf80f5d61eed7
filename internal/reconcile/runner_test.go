package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"

	"payment-reconciler/internal/model"
	"payment-reconciler/internal/reconcile"
)

func TestRunner_RunOnceSyncsThenCorrects(t *testing.T) {
	defer gock.Off()

	received := payment("pay_1", "cus_a", "Evento X", 100, "RECEIVED")
	mockPage("0", page(false, received))
	mockCustomer("cus_a", "11111111111")
	mockHistory("cus_a", received)

	// correction re-reads the same customer
	mockCustomersByTaxID("11111111111", customer("cus_a", "11111111111"))
	mockHistory("cus_a", received)

	store := newMemStore()
	syncer := newSyncer(store, &countingPacer{}, nil, 1000)
	corrector := newCorrector(store, nil)

	runner := reconcile.NewRunner(syncer, corrector, reconcile.RunnerOptions{
		Interval:         time.Hour,
		Lookback:         2 * 24 * time.Hour,
		RunTimeout:       time.Minute,
		Cutoff:           cutoff,
		CorrectAfterSync: true,
	}, discardLogger)
	reconcile.SetRunnerClock(runner, func() time.Time { return since.AddDate(0, 0, 2).Add(15 * time.Hour) })

	runner.RunOnce(context.Background())

	reg, ok := store.get("11111111111")
	assert.True(t, ok)
	assert.Equal(t, model.StatusPaid, reg.PaymentStatus)
	assert.Equal(t, 0, store.aggregateUpdates)
	assert.True(t, gock.IsDone())
}

func TestRunner_RunOnceSkipsCorrectionWhenDisabled(t *testing.T) {
	defer gock.Off()

	mockPage("0", page(false))

	store := newMemStore(registration("11111111111", model.StatusPending, "100", 1, cutoff))
	runner := reconcile.NewRunner(newSyncer(store, &countingPacer{}, nil, 1000), newCorrector(store, nil), reconcile.RunnerOptions{
		Interval:   time.Hour,
		Lookback:   24 * time.Hour,
		RunTimeout: time.Minute,
		Cutoff:     cutoff,
	}, discardLogger)
	reconcile.SetRunnerClock(runner, func() time.Time { return since.Add(36 * time.Hour) })

	runner.RunOnce(context.Background())

	// a correction would have called the customer lookup, which has no mock
	reg, _ := store.get("11111111111")
	assert.Equal(t, model.StatusPending, reg.PaymentStatus)
	assert.True(t, gock.IsDone())
}
