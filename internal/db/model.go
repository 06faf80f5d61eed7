package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/model"
)

const registrationColumns = `id, cpf, full_name, email, phone, payment_status, total::text, installments,
	asaas_payment_id, incomplete_profile, created_at, updated_at`

// RegistrationEntity mirrors the event_registrations columns this service reads.
type RegistrationEntity struct {
	ID                uuid.UUID
	Cpf               string
	FullName          string
	Email             string
	Phone             string
	PaymentStatus     string
	Total             string
	Installments      int
	AsaasPaymentID    *string
	IncompleteProfile bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*RegistrationEntity, error) {
	var e RegistrationEntity
	err := row.Scan(&e.ID, &e.Cpf, &e.FullName, &e.Email, &e.Phone, &e.PaymentStatus, &e.Total, &e.Installments,
		&e.AsaasPaymentID, &e.IncompleteProfile, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *RegistrationEntity) toModel() (model.Registration, error) {
	total, err := decimal.NewFromString(e.Total)
	if err != nil {
		return model.Registration{}, errors.Wrapf(err, "registration %s total %q", e.ID, e.Total)
	}

	reg := model.Registration{
		ID:                e.ID,
		TaxID:             model.NormalizeTaxID(e.Cpf),
		FullName:          e.FullName,
		Email:             e.Email,
		Phone:             e.Phone,
		PaymentStatus:     model.PaymentStatus(e.PaymentStatus),
		Total:             total,
		Installments:      e.Installments,
		IncompleteProfile: e.IncompleteProfile,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.AsaasPaymentID != nil {
		reg.AsaasPaymentID = *e.AsaasPaymentID
	}
	return reg, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
