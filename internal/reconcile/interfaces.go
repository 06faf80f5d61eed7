package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciler/internal/gateway"
	"payment-reconciler/internal/message"
	"payment-reconciler/internal/model"
)

// Gateway is the read-only view of the billing gateway used by the jobs.
type Gateway interface {
	ListCustomersByTaxID(ctx context.Context, taxID string) ([]model.ExternalCustomer, error)
	GetCustomer(ctx context.Context, id string) (model.ExternalCustomer, error)
	ListPayments(ctx context.Context, customerID string, limit int) ([]model.ExternalPayment, error)
	ListPaymentsCreatedSince(ctx context.Context, since time.Time, limit, offset int) (gateway.PaymentPage, error)
}

// Store persists registrations by their natural key.
type Store interface {
	FindByTaxID(ctx context.Context, taxID string) (*model.Registration, error)
	Insert(ctx context.Context, reg *model.Registration) (bool, error)
	UpdatePaymentStatus(ctx context.Context, taxID string, status model.PaymentStatus, paymentID string) (bool, error)
	UpdateAggregate(ctx context.Context, taxID string, status model.PaymentStatus, total decimal.Decimal, installments int, paymentID string) (bool, error)
	ListCreatedSince(ctx context.Context, cutoff time.Time) ([]model.Registration, error)
	CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SummarizeByStatus(ctx context.Context, cutoff time.Time) ([]model.StatusSummary, error)
}

// Notifier is told about every registration the jobs create or change.
type Notifier interface {
	StatusChanged(ctx context.Context, msg message.RegistrationStatusChanged) error
}

type noopNotifier struct{}

func (noopNotifier) StatusChanged(context.Context, message.RegistrationStatusChanged) error {
	return nil
}
