package reconcile_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/model"
	"payment-reconciler/internal/reconcile"
)

// overlapStore records how many lookups were in flight at once.
type overlapStore struct {
	*memStore
	active    atomic.Int32
	maxActive atomic.Int32
}

func (s *overlapStore) enter() func() {
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return func() { s.active.Add(-1) }
}

func (s *overlapStore) FindByTaxID(ctx context.Context, taxID string) (*model.Registration, error) {
	defer s.enter()()
	return s.memStore.FindByTaxID(ctx, taxID)
}

func (s *overlapStore) UpdateAggregate(ctx context.Context, taxID string, status model.PaymentStatus, total decimal.Decimal, installments int, paymentID string) (bool, error) {
	defer s.enter()()
	return s.memStore.UpdateAggregate(ctx, taxID, status, total, installments, paymentID)
}

func webhookPayment(customerID string) model.ExternalPayment {
	return model.ExternalPayment{
		ID:          "pay_" + customerID,
		CustomerID:  customerID,
		Description: "Evento X",
		Value:       decimal.NewFromInt(100),
		Status:      model.GatewayReceived,
	}
}

func TestSync_WebhookAndScheduledRunDoNotOverlap(t *testing.T) {
	defer gock.Off()

	scheduled := []string{"cus_p1", "cus_p2", "cus_p3"}
	webhook := []string{"cus_w1", "cus_w2", "cus_w3"}
	cpfs := map[string]string{
		"cus_p1": "10000000001", "cus_p2": "10000000002", "cus_p3": "10000000003",
		"cus_w1": "20000000001", "cus_w2": "20000000002", "cus_w3": "20000000003",
	}

	var feed []map[string]any
	for _, id := range scheduled {
		feed = append(feed, payment("pay_"+id, id, "Evento X", 100, "RECEIVED"))
	}
	mockPage("0", page(false, feed...))
	for id, cpf := range cpfs {
		mockCustomer(id, cpf)
		mockHistory(id, payment("pay_"+id, id, "Evento X", 100, "RECEIVED"))
	}

	store := &overlapStore{memStore: newMemStore()}
	syncer := newSyncer(store, &countingPacer{}, nil, 1000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := syncer.Sync(context.Background(), since)
		assert.NoError(t, err)
		assert.Equal(t, 3, report.NewCustomers)
	}()
	for _, id := range webhook {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			report, err := syncer.ProcessPayment(context.Background(), webhookPayment(id))
			assert.NoError(t, err)
			assert.Equal(t, 1, report.NewCustomers)
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 1, store.maxActive.Load())
	require.Len(t, store.rows, 6)
	assert.True(t, gock.IsDone())
}

func TestCorrect_SharesLockWithWebhookSyncer(t *testing.T) {
	defer gock.Off()

	var regs []model.Registration
	for i, cpf := range []string{"30000000001", "30000000002", "30000000003"} {
		id := "cus_r" + strconv.Itoa(i)
		mockCustomersByTaxID(cpf, customer(id, cpf))
		mockHistory(id, payment("pay_"+id, id, "Evento X", 100, "RECEIVED"))
		regs = append(regs, registration(cpf, model.StatusPending, "100", 1, cutoff))
	}
	for i, id := range []string{"cus_w1", "cus_w2", "cus_w3"} {
		mockCustomer(id, "4000000000"+strconv.Itoa(i))
		mockHistory(id, payment("pay_"+id, id, "Evento X", 100, "RECEIVED"))
	}

	store := &overlapStore{memStore: newMemStore(regs...)}
	syncer := newSyncer(store, &countingPacer{}, nil, 1000)
	corrector := newCorrector(store, nil)
	reconcile.NewRunner(syncer, corrector, reconcile.RunnerOptions{Interval: time.Hour}, discardLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := corrector.Correct(context.Background(), cutoff)
		assert.NoError(t, err)
		assert.Equal(t, 3, report.Updated)
	}()
	for _, id := range []string{"cus_w1", "cus_w2", "cus_w3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := syncer.ProcessPayment(context.Background(), webhookPayment(id))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 1, store.maxActive.Load())
	assert.Equal(t, 3, store.aggregateUpdates)
	require.Len(t, store.rows, 6)
	assert.True(t, gock.IsDone())
}
