package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/model"
)

// In-scope and purge predicates share one cutoff so reporting and purging
// agree on which rows are legacy.
const (
	inScope    = "created_at >= $1"
	outOfScope = "created_at < $1"
)

// Rows written by other tools may carry a formatted cpf, so lookups compare
// digits only. The expression matches event_registrations_cpf_digits_key.
const cpfDigits = `regexp_replace(cpf, '[^0-9]', '', 'g')`

type RegistrationRepository struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

func (r *RegistrationRepository) FindByTaxID(ctx context.Context, taxID string) (*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE ` + cpfDigits + ` = $1`

	entity, err := scanRegistration(r.pool.QueryRow(ctx, query, model.NormalizeTaxID(taxID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find registration")
	}

	reg, err := entity.toModel()
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Insert creates reg unless a row with the same cpf digits already exists, in
// which case it reports false and leaves the existing row untouched.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *model.Registration) (bool, error) {
	query := `INSERT INTO event_registrations
	          (id, cpf, full_name, email, phone, payment_status, total, installments, asaas_payment_id, incomplete_profile, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $11)
	          ON CONFLICT DO NOTHING
	          RETURNING id`

	err := r.pool.QueryRow(ctx, query, reg.ID, model.NormalizeTaxID(reg.TaxID), reg.FullName, reg.Email, reg.Phone, string(reg.PaymentStatus),
		reg.Total.String(), reg.Installments, nullable(reg.AsaasPaymentID), reg.IncompleteProfile, reg.CreatedAt).Scan(&reg.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, writeError("insert registration", err)
	}
	reg.UpdatedAt = reg.CreatedAt
	return true, nil
}

// UpdatePaymentStatus reports whether the row changed; identical values are not rewritten.
func (r *RegistrationRepository) UpdatePaymentStatus(ctx context.Context, taxID string, status model.PaymentStatus, paymentID string) (bool, error) {
	query := `UPDATE event_registrations
	          SET payment_status = $2, asaas_payment_id = $3, updated_at = now()
	          WHERE ` + cpfDigits + ` = $1
	            AND (payment_status IS DISTINCT FROM $2 OR asaas_payment_id IS DISTINCT FROM $3)`

	tag, err := r.pool.Exec(ctx, query, model.NormalizeTaxID(taxID), string(status), nullable(paymentID))
	if err != nil {
		return false, writeError("update payment status", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateAggregate overwrites the derived payment columns of one registration.
func (r *RegistrationRepository) UpdateAggregate(ctx context.Context, taxID string, status model.PaymentStatus, total decimal.Decimal, installments int, paymentID string) (bool, error) {
	query := `UPDATE event_registrations
	          SET payment_status = $2, total = $3::numeric, installments = $4, asaas_payment_id = $5, updated_at = now()
	          WHERE ` + cpfDigits + ` = $1`

	tag, err := r.pool.Exec(ctx, query, model.NormalizeTaxID(taxID), string(status), total.String(), installments, nullable(paymentID))
	if err != nil {
		return false, writeError("update registration aggregate", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RegistrationRepository) ListCreatedSince(ctx context.Context, cutoff time.Time) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE ` + inScope + ` ORDER BY created_at, cpf`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	defer rows.Close()

	var registrations []model.Registration
	for rows.Next() {
		entity, err := scanRegistration(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan registration")
		}
		reg, err := entity.toModel()
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	return registrations, nil
}

func (r *RegistrationRepository) CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM event_registrations WHERE `+outOfScope, cutoff).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count legacy registrations")
	}
	return count, nil
}

// DeleteCreatedBefore removes every registration outside the cutoff in one statement.
func (r *RegistrationRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_registrations WHERE `+outOfScope, cutoff)
	if err != nil {
		return 0, writeError("purge registrations", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RegistrationRepository) SummarizeByStatus(ctx context.Context, cutoff time.Time) ([]model.StatusSummary, error) {
	query := `SELECT payment_status, count(*), COALESCE(sum(total), 0)::text
	          FROM event_registrations
	          WHERE ` + inScope + `
	          GROUP BY payment_status
	          ORDER BY payment_status`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "summarize registrations")
	}
	defer rows.Close()

	var summaries []model.StatusSummary
	for rows.Next() {
		var (
			status  string
			count   int
			revenue string
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return nil, errors.Wrap(err, "scan summary")
		}
		amount, err := decimal.NewFromString(revenue)
		if err != nil {
			return nil, errors.Wrapf(err, "summary revenue %q", revenue)
		}
		summaries = append(summaries, model.StatusSummary{Status: model.PaymentStatus(status), Count: count, Revenue: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "summarize registrations")
	}
	return summaries, nil
}

func writeError(op string, err error) error {
	return errors.Wrapf(model.ErrWriteConflict, "%s: %v", op, err)
}
