package event

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"payment-reconciler/internal/gateway"
	"payment-reconciler/internal/logcontext"
	"payment-reconciler/internal/message"
	"payment-reconciler/internal/model"
	"payment-reconciler/internal/reconcile"
)

// PaymentSyncer runs the sync path for one payment.
type PaymentSyncer interface {
	ProcessPayment(ctx context.Context, payment model.ExternalPayment) (*reconcile.SyncReport, error)
}

// Processor turns gateway payment webhooks into single-payment syncs.
type Processor struct {
	syncer PaymentSyncer
	logger *slog.Logger
}

func NewProcessor(syncer PaymentSyncer, logger *slog.Logger) *Processor {
	return &Processor{syncer: syncer, logger: logger}
}

func (p *Processor) Process(ctx context.Context, event message.PaymentEvent) error {
	ctx = logcontext.AppendCtx(ctx, slog.String("eventId", event.ID), slog.String("event", event.Event))

	if !strings.HasPrefix(event.Event, "PAYMENT_") || len(event.Payment) == 0 {
		p.logger.DebugContext(ctx, "Ignoring non-payment event")
		return nil
	}

	payment, err := gateway.DecodePayment(event.Payment)
	if err != nil {
		// redelivery cannot fix a malformed payload
		p.logger.ErrorContext(ctx, "Error decoding webhook payment", "kind", reconcile.ErrorKind(err), "error", err)
		return nil
	}

	report, err := p.syncer.ProcessPayment(ctx, payment)
	if err != nil {
		return errors.Wrapf(err, "process payment %s", payment.ID)
	}

	p.logger.InfoContext(ctx, "Processed webhook payment",
		"paymentId", payment.ID,
		"eventPayment", report.EventPayments > 0,
		"newCustomers", report.NewCustomers,
		"updatedPayments", report.UpdatedPayments)
	return nil
}
