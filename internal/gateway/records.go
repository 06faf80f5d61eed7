package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/model"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

type listResponse[T any] struct {
	HasMore    bool `json:"hasMore"`
	TotalCount int  `json:"totalCount"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Data       []T  `json:"data"`
}

type customerRecord struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name"`
	CpfCnpj     string  `json:"cpfCnpj"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	MobilePhone *string `json:"mobilePhone"`
	Deleted     bool    `json:"deleted"`
	DateCreated string  `json:"dateCreated"`
}

type paymentRecord struct {
	ID          string           `json:"id" validate:"required"`
	Customer    string           `json:"customer" validate:"required"`
	Description *string          `json:"description"`
	Value       *decimal.Decimal `json:"value" validate:"required"`
	Status      string           `json:"status" validate:"required"`
	BillingType string           `json:"billingType"`
	DueDate     string           `json:"dueDate"`
	PaymentDate *string          `json:"paymentDate"`
	DateCreated string           `json:"dateCreated"`
}

// PaymentPage is one page of the created-since payment feed. Records that
// could not be decoded are kept apart in Rejected so the rest of the page
// stays usable.
type PaymentPage struct {
	Payments []model.ExternalPayment
	Rejected []RejectedPayment
	HasMore  bool
	Offset   int
}

// RejectedPayment identifies a feed record that failed decoding or validation.
// ID and Description are best effort and may be empty.
type RejectedPayment struct {
	ID          string
	Description string
	Err         error
}

func rejectedPayment(raw json.RawMessage, err error) RejectedPayment {
	var loose struct {
		ID          any `json:"id"`
		Description any `json:"description"`
	}
	_ = json.Unmarshal(raw, &loose)

	return RejectedPayment{ID: looseString(loose.ID), Description: looseString(loose.Description), Err: err}
}

func looseString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (r customerRecord) toModel() (model.ExternalCustomer, error) {
	if err := validate.Struct(r); err != nil {
		return model.ExternalCustomer{}, errors.Wrap(ErrProtocol, err.Error())
	}

	createdAt, err := parseDate(r.DateCreated)
	if err != nil {
		return model.ExternalCustomer{}, errors.Wrapf(ErrProtocol, "customer %s dateCreated: %v", r.ID, err)
	}

	phone := deref(r.MobilePhone)
	if phone == "" {
		phone = deref(r.Phone)
	}

	return model.ExternalCustomer{
		ID:        r.ID,
		TaxID:     model.NormalizeTaxID(r.CpfCnpj),
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.TrimSpace(deref(r.Email)),
		Phone:     phone,
		Deleted:   r.Deleted,
		CreatedAt: createdAt,
	}, nil
}

func (r paymentRecord) toModel() (model.ExternalPayment, error) {
	if err := validate.Struct(r); err != nil {
		return model.ExternalPayment{}, errors.Wrap(ErrProtocol, err.Error())
	}
	if r.Value.IsNegative() {
		return model.ExternalPayment{}, errors.Wrapf(ErrProtocol, "payment %s has negative value %s", r.ID, r.Value)
	}

	dueDate, err := parseDate(r.DueDate)
	if err != nil {
		return model.ExternalPayment{}, errors.Wrapf(ErrProtocol, "payment %s dueDate: %v", r.ID, err)
	}
	createdAt, err := parseDate(r.DateCreated)
	if err != nil {
		return model.ExternalPayment{}, errors.Wrapf(ErrProtocol, "payment %s dateCreated: %v", r.ID, err)
	}

	var paymentDate *time.Time
	if r.PaymentDate != nil && *r.PaymentDate != "" {
		d, err := parseDate(*r.PaymentDate)
		if err != nil {
			return model.ExternalPayment{}, errors.Wrapf(ErrProtocol, "payment %s paymentDate: %v", r.ID, err)
		}
		paymentDate = &d
	}

	return model.ExternalPayment{
		ID:          r.ID,
		CustomerID:  r.Customer,
		Description: deref(r.Description),
		Value:       *r.Value,
		Status:      model.GatewayStatus(strings.ToUpper(r.Status)),
		BillingType: r.BillingType,
		DueDate:     dueDate,
		PaymentDate: paymentDate,
		CreatedAt:   createdAt,
	}, nil
}

// DecodePayment parses a single payment object, as embedded in webhook
// deliveries, with the same required-field rules as the REST listings.
func DecodePayment(raw json.RawMessage) (model.ExternalPayment, error) {
	var record paymentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return model.ExternalPayment{}, errors.Wrap(ErrProtocol, err.Error())
	}
	return record.toModel()
}

func toPayments(records []paymentRecord) ([]model.ExternalPayment, error) {
	payments := make([]model.ExternalPayment, 0, len(records))
	for _, r := range records {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
