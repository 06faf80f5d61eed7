package reconcile_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/description"
	"payment-reconciler/internal/gateway"
	"payment-reconciler/internal/message"
	"payment-reconciler/internal/model"
	"payment-reconciler/internal/reconcile"
)

const (
	baseURL   = "http://gateway.test/v3"
	eventName = "Evento X"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newGatewayClient() *gateway.Client {
	return gateway.NewClient(config.Gateway{
		Environment: config.EnvironmentSandbox,
		Sandbox:     config.GatewayEndpoint{BaseURL: baseURL, APIKey: "test-key"},
		EventName:   eventName,
		TimeoutMs:   10_000,
	}, discardLogger)
}

func newParser() *description.Parser {
	return description.NewParser(eventName)
}

// memStore is an in-memory Store keyed by tax id digits, like the repository.
type memStore struct {
	mu   sync.Mutex
	rows map[string]model.Registration

	// raceInsert, when set, is stored instead of the row passed to Insert,
	// as if a concurrent writer had won the unique constraint.
	raceInsert *model.Registration
	failWrites map[string]error

	statusUpdates    int
	aggregateUpdates int
}

func newMemStore(regs ...model.Registration) *memStore {
	s := &memStore{rows: make(map[string]model.Registration), failWrites: make(map[string]error)}
	for _, r := range regs {
		s.rows[model.NormalizeTaxID(r.TaxID)] = r
	}
	return s
}

func (s *memStore) get(taxID string) (model.Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[model.NormalizeTaxID(taxID)]
	return r, ok
}

func (s *memStore) FindByTaxID(_ context.Context, taxID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[model.NormalizeTaxID(taxID)]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}
	return &r, nil
}

func (s *memStore) Insert(_ context.Context, reg *model.Registration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failWrites[model.NormalizeTaxID(reg.TaxID)]; err != nil {
		return false, err
	}
	if s.raceInsert != nil {
		s.rows[model.NormalizeTaxID(s.raceInsert.TaxID)] = *s.raceInsert
		s.raceInsert = nil
		return false, nil
	}
	key := model.NormalizeTaxID(reg.TaxID)
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	s.rows[key] = *reg
	return true, nil
}

func (s *memStore) UpdatePaymentStatus(_ context.Context, taxID string, status model.PaymentStatus, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taxID = model.NormalizeTaxID(taxID)
	if err := s.failWrites[taxID]; err != nil {
		return false, err
	}
	r, ok := s.rows[taxID]
	if !ok || (r.PaymentStatus == status && r.AsaasPaymentID == paymentID) {
		return false, nil
	}
	r.PaymentStatus = status
	r.AsaasPaymentID = paymentID
	s.rows[taxID] = r
	s.statusUpdates++
	return true, nil
}

func (s *memStore) UpdateAggregate(_ context.Context, taxID string, status model.PaymentStatus, total decimal.Decimal, installments int, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taxID = model.NormalizeTaxID(taxID)
	if err := s.failWrites[taxID]; err != nil {
		return false, err
	}
	r, ok := s.rows[taxID]
	if !ok {
		return false, nil
	}
	r.PaymentStatus = status
	r.Total = total
	r.Installments = installments
	r.AsaasPaymentID = paymentID
	s.rows[taxID] = r
	s.aggregateUpdates++
	return true, nil
}

func (s *memStore) ListCreatedSince(_ context.Context, cutoff time.Time) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, r := range s.rows {
		if !r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxID < out[j].TaxID })
	return out, nil
}

func (s *memStore) CountCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for taxID, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			delete(s.rows, taxID)
			n++
		}
	}
	return n, nil
}

func (s *memStore) SummarizeByStatus(_ context.Context, cutoff time.Time) ([]model.StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStatus := make(map[model.PaymentStatus]*model.StatusSummary)
	for _, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		sum, ok := byStatus[r.PaymentStatus]
		if !ok {
			sum = &model.StatusSummary{Status: r.PaymentStatus, Revenue: decimal.Zero}
			byStatus[r.PaymentStatus] = sum
		}
		sum.Count++
		sum.Revenue = sum.Revenue.Add(r.Total)
	}
	out := make([]model.StatusSummary, 0, len(byStatus))
	for _, sum := range byStatus {
		out = append(out, *sum)
	}
	return out, nil
}

type countingPacer struct {
	calls int
}

func (p *countingPacer) Wait(context.Context) error {
	p.calls++
	return nil
}

type recordingNotifier struct {
	messages []message.RegistrationStatusChanged
	err      error
}

func (n *recordingNotifier) StatusChanged(_ context.Context, msg message.RegistrationStatusChanged) error {
	n.messages = append(n.messages, msg)
	return n.err
}

func registration(taxID string, status model.PaymentStatus, total string, installments int, createdAt time.Time) model.Registration {
	return model.Registration{
		TaxID:          taxID,
		FullName:       "Registrant " + taxID,
		PaymentStatus:  status,
		Total:          decimal.RequireFromString(total),
		Installments:   installments,
		AsaasPaymentID: fmt.Sprintf("pay_%s_1", taxID),
		CreatedAt:      createdAt,
	}
}

func payment(id, customer, desc string, value float64, status string) map[string]any {
	return map[string]any{
		"id":          id,
		"customer":    customer,
		"description": desc,
		"value":       value,
		"status":      status,
		"billingType": "PIX",
		"dueDate":     "2025-03-10",
		"dateCreated": "2025-03-01",
	}
}

func customer(id, cpf string) map[string]any {
	return map[string]any{"id": id, "name": "Customer " + id, "cpfCnpj": cpf, "email": id + "@example.com"}
}

func page(hasMore bool, payments ...map[string]any) map[string]any {
	if payments == nil {
		payments = []map[string]any{}
	}
	return map[string]any{"hasMore": hasMore, "data": payments}
}

var _ reconcile.Store = (*memStore)(nil)
