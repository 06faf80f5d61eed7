package reconcile

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/aggregate"
	"payment-reconciler/internal/model"
)

type StatusLine struct {
	Status  model.PaymentStatus `json:"status"`
	Count   int                 `json:"count"`
	Revenue decimal.Decimal     `json:"revenue"`
}

// Report is the revenue breakdown of the in-scope registrations.
type Report struct {
	Cutoff         time.Time       `json:"cutoff"`
	ByStatus       []StatusLine    `json:"byStatus"`
	Registrations  int             `json:"registrations"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	PaidRevenue    decimal.Decimal `json:"paidRevenue"`
	CollectionRate decimal.Decimal `json:"collectionRate"`
}

type Reporter struct {
	store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

func (r *Reporter) Report(ctx context.Context, cutoff time.Time) (*Report, error) {
	summaries, err := r.store.SummarizeByStatus(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "summarize registrations")
	}
	return BuildReport(cutoff, summaries), nil
}

// BuildReport fills in every known status, including empty ones, and
// computes the collection rate as a percentage. A zero total yields 0.
func BuildReport(cutoff time.Time, summaries []model.StatusSummary) *Report {
	byStatus := make(map[model.PaymentStatus]model.StatusSummary, len(summaries))
	for _, s := range summaries {
		byStatus[s.Status] = s
	}

	report := &Report{
		Cutoff:       cutoff,
		TotalRevenue: decimal.Zero,
		PaidRevenue:  decimal.Zero,
	}
	for _, status := range model.PaymentStatuses {
		s := byStatus[status]
		report.ByStatus = append(report.ByStatus, StatusLine{Status: status, Count: s.Count, Revenue: s.Revenue})
		report.Registrations += s.Count
		report.TotalRevenue = report.TotalRevenue.Add(s.Revenue)
		if status.Collected() {
			report.PaidRevenue = report.PaidRevenue.Add(s.Revenue)
		}
	}
	report.CollectionRate = aggregate.Percentage(report.PaidRevenue, report.TotalRevenue)
	return report
}

func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Registrations since %s\t\t\t\n", r.Cutoff.Format(time.DateOnly))
	fmt.Fprintln(tw, "STATUS\tCOUNT\tREVENUE\t")
	for _, line := range r.ByStatus {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", line.Status, line.Count, line.Revenue.StringFixed(2))
	}
	fmt.Fprintf(tw, "total\t%d\t%s\t\n", r.Registrations, r.TotalRevenue.StringFixed(2))
	fmt.Fprintf(tw, "collected\t\t%s\t\n", r.PaidRevenue.StringFixed(2))
	fmt.Fprintf(tw, "collection rate\t\t%s%%\t\n", r.CollectionRate.StringFixed(1))
	return tw.Flush()
}

// Render prints the run summary for the terminal.
func (r *SyncReport) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "since\t%s\n", r.Since.Format(time.DateOnly))
	fmt.Fprintf(tw, "pages\t%d\n", r.Pages)
	fmt.Fprintf(tw, "total payments\t%d\n", r.TotalPayments)
	fmt.Fprintf(tw, "event payments\t%d\n", r.EventPayments)
	fmt.Fprintf(tw, "new customers\t%d\n", r.NewCustomers)
	fmt.Fprintf(tw, "updated payments\t%d\n", r.UpdatedPayments)
	fmt.Fprintf(tw, "unchanged\t%d\n", r.Unchanged)
	fmt.Fprintf(tw, "errors\t%d\n", r.Errors)
	if r.PageCeilingHit {
		fmt.Fprintln(tw, "page ceiling\treached")
	}
	if r.Interrupted {
		fmt.Fprintln(tw, "interrupted\tyes")
	}
	for _, taxID := range r.IncompleteProfiles {
		fmt.Fprintf(tw, "incomplete profile\t%s\n", taxID)
	}
	return tw.Flush()
}

func (r *CorrectionReport) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "cutoff\t%s\n", r.Cutoff.Format(time.DateOnly))
	fmt.Fprintf(tw, "scanned\t%d\n", r.Scanned)
	fmt.Fprintf(tw, "updated\t%d\n", r.Updated)
	fmt.Fprintf(tw, "no change\t%d\n", r.NoChange)
	fmt.Fprintf(tw, "errors\t%d\n", r.Errors)
	if r.Interrupted {
		fmt.Fprintln(tw, "interrupted\tyes")
	}
	for _, c := range r.Corrections {
		fmt.Fprintf(tw, "corrected %s\t%s -> %s, %s -> %s (%d installments)\n",
			c.TaxID, c.FromStatus, c.ToStatus, c.FromTotal.StringFixed(2), c.ToTotal.StringFixed(2), c.Installments)
	}
	return tw.Flush()
}

func (r *PurgeReport) Render(w io.Writer) error {
	if r.DryRun {
		_, err := fmt.Fprintf(w, "dry run: %d registrations created before %s would be deleted\n", r.Matched, r.Cutoff.Format(time.DateOnly))
		return err
	}
	_, err := fmt.Fprintf(w, "deleted %d registrations created before %s\n", r.Deleted, r.Cutoff.Format(time.DateOnly))
	return err
}
