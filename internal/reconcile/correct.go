package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/aggregate"
	"payment-reconciler/internal/description"
	"payment-reconciler/internal/logcontext"
	"payment-reconciler/internal/message"
	"payment-reconciler/internal/model"
)

// Correction records one registration rewritten by a correction run.
type Correction struct {
	TaxID        string
	FromStatus   model.PaymentStatus
	ToStatus     model.PaymentStatus
	FromTotal    decimal.Decimal
	ToTotal      decimal.Decimal
	Installments int
}

type CorrectionReport struct {
	RunID       string
	Cutoff      time.Time
	Scanned     int
	Updated     int
	NoChange    int
	Errors      int
	Corrections []Correction
	Interrupted bool
}

// Corrector re-derives the aggregate status of every in-scope registration
// from the gateway and writes back only the ones that diverge.
type Corrector struct {
	mu           sync.Locker
	gateway      Gateway
	store        Store
	parser       *description.Parser
	pacer        Pacer
	notifier     Notifier
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

func NewCorrector(gw Gateway, store Store, parser *description.Parser, pacer Pacer, notifier Notifier, historyLimit int, logger *slog.Logger) *Corrector {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Corrector{
		mu:           &sync.Mutex{},
		gateway:      gw,
		store:        store,
		parser:       parser,
		pacer:        pacer,
		notifier:     notifier,
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// Correct walks registrations created on or after cutoff. Failing to list
// them aborts the run; per-registration failures are only counted.
func (c *Corrector) Correct(ctx context.Context, cutoff time.Time) (*CorrectionReport, error) {
	startTime := time.Now()
	defer func() {
		correctionDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	report := &CorrectionReport{RunID: uuid.NewString(), Cutoff: cutoff}
	ctx = logcontext.AppendCtx(ctx, slog.String("runId", report.RunID), slog.String("job", "correct"))

	registrations, err := c.store.ListCreatedSince(ctx, cutoff)
	if err != nil {
		return report, errors.Wrap(err, "list registrations")
	}
	c.logger.InfoContext(ctx, "Starting correction", "cutoff", cutoff.Format(time.DateOnly), "registrations", len(registrations))

	for i := range registrations {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return report, err
		}
		report.Scanned++

		reg := &registrations[i]
		itemCtx := logcontext.AppendCtx(ctx, slog.String("taxId", reg.TaxID))

		c.mu.Lock()
		if err := c.correctOne(itemCtx, reg, report); err != nil {
			report.Errors++
			correctionFailedCounter.Inc()
			c.logger.ErrorContext(itemCtx, "Error correcting registration", "kind", ErrorKind(err), "error", err)
		}

		if waitErr := c.pacer.Wait(ctx); waitErr != nil {
			c.logger.DebugContext(ctx, "Pacing interrupted", "error", waitErr)
		}
		c.mu.Unlock()
	}

	c.logger.InfoContext(ctx, "Correction finished",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"noChange", report.NoChange,
		"errors", report.Errors)

	return report, nil
}

func (c *Corrector) correctOne(ctx context.Context, reg *model.Registration, report *CorrectionReport) error {
	payments, err := c.eventPayments(ctx, reg.TaxID)
	if err != nil {
		return err
	}

	status := aggregate.Aggregate(payments, c.parser)
	installments := max(status.TotalInstallments, 1)

	paymentID := reg.AsaasPaymentID
	if paymentID == "" {
		paymentID = payments[0].ID
	}

	if reg.PaymentStatus == status.Status && reg.Total.Equal(status.TotalValue) &&
		reg.Installments == installments && reg.AsaasPaymentID == paymentID {
		report.NoChange++
		correctionNoChangeCounter.Inc()
		return nil
	}

	if _, err := c.store.UpdateAggregate(ctx, reg.TaxID, status.Status, status.TotalValue, installments, paymentID); err != nil {
		return errors.Wrap(err, "write correction")
	}

	report.Updated++
	report.Corrections = append(report.Corrections, Correction{
		TaxID:        reg.TaxID,
		FromStatus:   reg.PaymentStatus,
		ToStatus:     status.Status,
		FromTotal:    reg.Total,
		ToTotal:      status.TotalValue,
		Installments: installments,
	})
	correctionUpdatedCounter.Inc()

	c.logger.InfoContext(ctx, "Corrected registration",
		"fromStatus", reg.PaymentStatus,
		"toStatus", status.Status,
		"fromTotal", reg.Total.String(),
		"toTotal", status.TotalValue.String(),
		"installments", installments,
		"paidPercentage", status.PaymentPercentage.String())

	if err := c.notifier.StatusChanged(ctx, message.RegistrationStatusChanged{
		ID:             reg.ID,
		TaxID:          reg.TaxID,
		PreviousStatus: string(reg.PaymentStatus),
		Status:         string(status.Status),
		Total:          status.TotalValue,
		Installments:   installments,
		AsaasPaymentID: paymentID,
		Source:         message.SourceCorrection,
		ChangedAt:      c.now().UTC(),
	}); err != nil {
		c.logger.WarnContext(ctx, "Error publishing status change", "error", err)
	}
	return nil
}

// eventPayments resolves the single gateway customer owning event payments
// for taxID and returns those payments ordered by due date.
func (c *Corrector) eventPayments(ctx context.Context, taxID string) ([]model.ExternalPayment, error) {
	customers, err := c.gateway.ListCustomersByTaxID(ctx, taxID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve customer")
	}

	var (
		owner    string
		payments []model.ExternalPayment
	)
	for _, customer := range customers {
		history, err := c.gateway.ListPayments(ctx, customer.ID, c.historyLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch payments of customer %s", customer.ID)
		}
		matched := filterEventPayments(history, c.parser)
		if len(matched) == 0 {
			continue
		}
		if owner != "" {
			return nil, errors.Wrapf(ErrAmbiguousCustomer, "customers %s and %s", owner, customer.ID)
		}
		owner = customer.ID
		payments = matched
	}

	if owner == "" {
		return nil, errors.Wrapf(ErrCustomerNotFound, "%d customers checked", len(customers))
	}

	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].DueDate.Before(payments[j].DueDate)
	})
	return payments, nil
}
