package reconcile_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/model"
	"payment-reconciler/internal/reconcile"
)

func seededStore() *memStore {
	return newMemStore(
		registration("11111111111", model.StatusPaid, "100", 1, cutoff.AddDate(-1, 0, 0)),
		registration("22222222222", model.StatusPending, "100", 1, cutoff.AddDate(0, 0, -1)),
		registration("33333333333", model.StatusPending, "100", 1, cutoff),
	)
}

func TestPurge_DryRunLeavesRows(t *testing.T) {
	store := seededStore()

	report, err := reconcile.NewPurger(store, discardLogger).Purge(context.Background(), cutoff, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Matched)
	assert.EqualValues(t, 0, report.Deleted)
	assert.Len(t, store.rows, 3)

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf))
	assert.Contains(t, buf.String(), "dry run: 2 registrations created before 2025-01-01 would be deleted")
}

func TestPurge_DeletesOnlyOutOfScope(t *testing.T) {
	store := seededStore()

	report, err := reconcile.NewPurger(store, discardLogger).Purge(context.Background(), cutoff, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Deleted)

	_, kept := store.get("33333333333")
	assert.True(t, kept)
	assert.Len(t, store.rows, 1)

	// purge and report agree on what is in scope
	summary, err := reconcile.NewReporter(store).Report(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Registrations)
}

func TestPurge_NothingToDelete(t *testing.T) {
	store := newMemStore(registration("33333333333", model.StatusPending, "100", 1, cutoff))

	report, err := reconcile.NewPurger(store, discardLogger).Purge(context.Background(), cutoff, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, report.Matched)
	assert.EqualValues(t, 0, report.Deleted)
}
