package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"payment-reconciler/internal/aggregate"
	"payment-reconciler/internal/description"
	"payment-reconciler/internal/logcontext"
	"payment-reconciler/internal/message"
	"payment-reconciler/internal/model"
)

const snippetLength = 60

type SyncOptions struct {
	PageSize     int
	MaxPages     int
	HistoryLimit int
}

// SyncReport summarises one sync run.
type SyncReport struct {
	RunID              string
	Since              time.Time
	Pages              int
	TotalPayments      int
	EventPayments      int
	NewCustomers       int
	UpdatedPayments    int
	Unchanged          int
	Errors             int
	IncompleteProfiles []string
	PageCeilingHit     bool
	Interrupted        bool
}

// Syncer walks the gateway payment feed and brings local registrations in
// line with it, one customer at a time. Scheduled runs and webhook payments
// may share a Syncer; mu keeps their gateway calls and writes sequential.
type Syncer struct {
	mu       sync.Mutex
	gateway  Gateway
	store    Store
	parser   *description.Parser
	pacer    Pacer
	notifier Notifier
	opts     SyncOptions
	logger   *slog.Logger
	now      func() time.Time
}

func NewSyncer(gw Gateway, store Store, parser *description.Parser, pacer Pacer, notifier Notifier, opts SyncOptions, logger *slog.Logger) *Syncer {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Syncer{
		gateway:  gw,
		store:    store,
		parser:   parser,
		pacer:    pacer,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Sync processes every payment created on or after since. Per-customer
// failures are counted in the report; only cancellation of ctx is returned as an error.
func (s *Syncer) Sync(ctx context.Context, since time.Time) (*SyncReport, error) {
	startTime := time.Now()
	defer func() {
		syncDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	report := &SyncReport{RunID: uuid.NewString(), Since: since}
	ctx = logcontext.AppendCtx(ctx, slog.String("runId", report.RunID), slog.String("job", "sync"))
	processed := make(map[string]struct{})

	s.logger.InfoContext(ctx, "Starting sync", "since", since.Format(time.DateOnly))

	for page := 0; ; page++ {
		if page >= s.opts.MaxPages {
			report.PageCeilingHit = true
			s.logger.WarnContext(ctx, "Page ceiling reached, stopping pagination", "maxPages", s.opts.MaxPages)
			break
		}
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return report, err
		}

		offset := page * s.opts.PageSize
		s.mu.Lock()
		result, err := s.gateway.ListPaymentsCreatedSince(ctx, since, s.opts.PageSize, offset)
		s.mu.Unlock()
		if err != nil {
			report.Errors++
			syncPageFailedCounter.Inc()
			s.logger.ErrorContext(ctx, "Error fetching payment page, stopping pagination", "offset", offset, "kind", ErrorKind(err), "error", err)
			break
		}
		syncPageFetchedCounter.Inc()
		report.Pages++

		if len(result.Payments) == 0 && len(result.Rejected) == 0 {
			break
		}

		for _, rejected := range result.Rejected {
			report.TotalPayments++
			report.Errors++
			syncPaymentRejectedCounter.Inc()
			s.logger.ErrorContext(ctx, "Skipping malformed payment record",
				"paymentId", rejected.ID,
				"kind", ErrorKind(rejected.Err),
				"description", snippet(rejected.Description),
				"error", rejected.Err)
		}

		for _, payment := range result.Payments {
			if err := ctx.Err(); err != nil {
				report.Interrupted = true
				return report, err
			}
			report.TotalPayments++
			_ = s.handlePayment(ctx, payment, processed, report, message.SourceSync)
		}

		if !result.HasMore {
			break
		}
	}

	s.logger.InfoContext(ctx, "Sync finished",
		"pages", report.Pages,
		"totalPayments", report.TotalPayments,
		"eventPayments", report.EventPayments,
		"newCustomers", report.NewCustomers,
		"updatedPayments", report.UpdatedPayments,
		"errors", report.Errors)

	return report, nil
}

// ProcessPayment runs the sync path for a single payment, as delivered by a webhook.
func (s *Syncer) ProcessPayment(ctx context.Context, payment model.ExternalPayment) (*SyncReport, error) {
	report := &SyncReport{RunID: uuid.NewString(), TotalPayments: 1}
	ctx = logcontext.AppendCtx(ctx, slog.String("runId", report.RunID), slog.String("job", "webhook"))

	err := s.handlePayment(ctx, payment, make(map[string]struct{}), report, message.SourceWebhook)
	return report, err
}

func (s *Syncer) handlePayment(ctx context.Context, payment model.ExternalPayment, processed map[string]struct{}, report *SyncReport, source string) error {
	if !s.parser.Parse(payment.Description).EventMatch {
		syncPaymentNotEventCounter.Inc()
		return nil
	}
	report.EventPayments++

	if _, seen := processed[payment.CustomerID]; seen {
		syncPaymentDuplicateCounter.Inc()
		return nil
	}
	processed[payment.CustomerID] = struct{}{}

	s.mu.Lock()
	defer s.mu.Unlock()

	itemCtx := logcontext.AppendCtx(ctx, slog.String("customerId", payment.CustomerID), slog.String("paymentId", payment.ID))

	taxID, err := s.syncCustomer(itemCtx, payment, report, source)
	if err != nil {
		report.Errors++
		syncCustomerFailedCounter.Inc()
		s.logger.ErrorContext(itemCtx, "Error syncing customer",
			"taxId", taxID,
			"kind", ErrorKind(err),
			"description", snippet(payment.Description),
			"error", err)
	}

	if waitErr := s.pacer.Wait(ctx); waitErr != nil {
		s.logger.DebugContext(ctx, "Pacing interrupted", "error", waitErr)
	}
	return err
}

func (s *Syncer) syncCustomer(ctx context.Context, payment model.ExternalPayment, report *SyncReport, source string) (string, error) {
	customer, err := s.gateway.GetCustomer(ctx, payment.CustomerID)
	if err != nil {
		return "", errors.Wrap(err, "resolve customer")
	}

	taxID := model.NormalizeTaxID(customer.TaxID)
	if taxID == "" {
		return "", errors.Wrapf(ErrMissingTaxID, "customer %s", customer.ID)
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("taxId", taxID))

	existing, err := s.store.FindByTaxID(ctx, taxID)
	switch {
	case errors.Is(err, model.ErrRegistrationNotFound):
		inserted, err := s.insert(ctx, customer, taxID, payment, report, source)
		if err != nil || inserted {
			return taxID, err
		}
		// another writer created the row in the meantime
		existing, err = s.store.FindByTaxID(ctx, taxID)
		if err != nil {
			return taxID, errors.Wrap(err, "reload registration")
		}
	case err != nil:
		return taxID, errors.Wrap(err, "lookup registration")
	}

	return taxID, s.update(ctx, existing, payment, report, source)
}

func (s *Syncer) insert(ctx context.Context, customer model.ExternalCustomer, taxID string, payment model.ExternalPayment, report *SyncReport, source string) (bool, error) {
	history, err := s.gateway.ListPayments(ctx, customer.ID, s.opts.HistoryLimit)
	if err != nil {
		return false, errors.Wrap(err, "fetch payment history")
	}

	eventPayments := filterEventPayments(history, s.parser)
	if len(eventPayments) == 0 {
		// the history listing can lag behind the created-since feed
		eventPayments = []model.ExternalPayment{payment}
	}
	status := aggregate.Aggregate(eventPayments, s.parser)

	reg := &model.Registration{
		ID:                uuid.New(),
		TaxID:             taxID,
		FullName:          customer.Name,
		Email:             customer.Email,
		Phone:             customer.Phone,
		PaymentStatus:     status.Status,
		Total:             status.TotalValue,
		Installments:      max(status.TotalInstallments, 1),
		AsaasPaymentID:    payment.ID,
		IncompleteProfile: true,
		CreatedAt:         s.now().UTC(),
	}

	inserted, err := s.store.Insert(ctx, reg)
	if err != nil {
		return false, errors.Wrap(err, "insert registration")
	}
	if !inserted {
		return false, nil
	}

	report.NewCustomers++
	report.IncompleteProfiles = append(report.IncompleteProfiles, taxID)
	syncCustomerInsertedCounter.Inc()

	s.logger.WarnContext(ctx, "Inserted registration with incomplete profile",
		"missing", "birth_date,state,city",
		"status", reg.PaymentStatus,
		"total", reg.Total.String(),
		"installments", reg.Installments)

	s.notify(ctx, message.RegistrationStatusChanged{
		ID:             reg.ID,
		TaxID:          taxID,
		Status:         string(reg.PaymentStatus),
		Total:          reg.Total,
		Installments:   reg.Installments,
		AsaasPaymentID: reg.AsaasPaymentID,
		Source:         source,
		ChangedAt:      reg.CreatedAt,
	})
	return true, nil
}

// update only touches status and payment reference; totals are the
// correction job's concern.
func (s *Syncer) update(ctx context.Context, reg *model.Registration, payment model.ExternalPayment, report *SyncReport, source string) error {
	status := payment.Status.LocalStatus()

	changed, err := s.store.UpdatePaymentStatus(ctx, reg.TaxID, status, payment.ID)
	if err != nil {
		return errors.Wrap(err, "update payment status")
	}
	if !changed {
		report.Unchanged++
		syncCustomerUnchangedCounter.Inc()
		return nil
	}

	report.UpdatedPayments++
	syncCustomerUpdatedCounter.Inc()
	s.logger.InfoContext(ctx, "Updated registration payment status", "from", reg.PaymentStatus, "to", status)

	s.notify(ctx, message.RegistrationStatusChanged{
		ID:             reg.ID,
		TaxID:          reg.TaxID,
		PreviousStatus: string(reg.PaymentStatus),
		Status:         string(status),
		Total:          reg.Total,
		Installments:   reg.Installments,
		AsaasPaymentID: payment.ID,
		Source:         source,
		ChangedAt:      s.now().UTC(),
	})
	return nil
}

func (s *Syncer) notify(ctx context.Context, msg message.RegistrationStatusChanged) {
	if err := s.notifier.StatusChanged(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Error publishing status change", "error", err)
	}
}

func filterEventPayments(payments []model.ExternalPayment, parser *description.Parser) []model.ExternalPayment {
	var matched []model.ExternalPayment
	for _, p := range payments {
		if parser.MatchesEvent(p.Description) {
			matched = append(matched, p)
		}
	}
	return matched
}

func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLength {
		return s
	}
	return string(runes[:snippetLength]) + "…"
}
