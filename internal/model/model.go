package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrWriteConflict        = errors.New("write conflict")
)

// PaymentStatus is the status stored on a local registration.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusPartial    PaymentStatus = "partial"
	StatusPaid       PaymentStatus = "paid"
	StatusReceived   PaymentStatus = "received"
	StatusRefunded   PaymentStatus = "refunded"
	StatusOverdue    PaymentStatus = "overdue"
	StatusChargeback PaymentStatus = "chargeback"
)

// PaymentStatuses lists every local status in reporting order.
var PaymentStatuses = []PaymentStatus{
	StatusPaid, StatusReceived, StatusPartial, StatusPending, StatusOverdue, StatusRefunded, StatusChargeback,
}

// Collected reports whether revenue in this status counts as collected.
func (s PaymentStatus) Collected() bool {
	return s == StatusPaid || s == StatusReceived
}

// GatewayStatus is the status of a charge on the gateway side.
type GatewayStatus string

const (
	GatewayPending                    GatewayStatus = "PENDING"
	GatewayReceived                   GatewayStatus = "RECEIVED"
	GatewayConfirmed                  GatewayStatus = "CONFIRMED"
	GatewayOverdue                    GatewayStatus = "OVERDUE"
	GatewayRefunded                   GatewayStatus = "REFUNDED"
	GatewayReceivedInCash             GatewayStatus = "RECEIVED_IN_CASH"
	GatewayRefundRequested            GatewayStatus = "REFUND_REQUESTED"
	GatewayRefundInProgress           GatewayStatus = "REFUND_IN_PROGRESS"
	GatewayChargebackRequested        GatewayStatus = "CHARGEBACK_REQUESTED"
	GatewayChargebackDispute          GatewayStatus = "CHARGEBACK_DISPUTE"
	GatewayAwaitingChargebackReversal GatewayStatus = "AWAITING_CHARGEBACK_REVERSAL"
)

// Paid reports whether the charge counts towards the paid value. CONFIRMED
// covers card installments that are authorized but not yet settled.
func (s GatewayStatus) Paid() bool {
	switch s {
	case GatewayReceived, GatewayConfirmed, GatewayReceivedInCash:
		return true
	}
	return false
}

// LocalStatus maps a single charge status onto a registration status.
func (s GatewayStatus) LocalStatus() PaymentStatus {
	switch s {
	case GatewayReceived, GatewayReceivedInCash:
		return StatusReceived
	case GatewayConfirmed:
		return StatusPaid
	case GatewayOverdue:
		return StatusOverdue
	case GatewayRefunded, GatewayRefundRequested, GatewayRefundInProgress:
		return StatusRefunded
	case GatewayChargebackRequested, GatewayChargebackDispute, GatewayAwaitingChargebackReversal:
		return StatusChargeback
	}
	return StatusPending
}

// Registration is a row of event_registrations, keyed by TaxID (cpf).
type Registration struct {
	ID                uuid.UUID
	TaxID             string
	FullName          string
	Email             string
	Phone             string
	PaymentStatus     PaymentStatus
	Total             decimal.Decimal
	Installments      int
	AsaasPaymentID    string
	IncompleteProfile bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExternalCustomer is a read-only snapshot of a gateway customer.
type ExternalCustomer struct {
	ID        string
	TaxID     string
	Name      string
	Email     string
	Phone     string
	Deleted   bool
	CreatedAt time.Time
}

// ExternalPayment is a read-only snapshot of a gateway charge.
type ExternalPayment struct {
	ID          string
	CustomerID  string
	Description string
	Value       decimal.Decimal
	Status      GatewayStatus
	BillingType string
	DueDate     time.Time
	PaymentDate *time.Time
	CreatedAt   time.Time
}

// StatusSummary is one row of the per-status revenue breakdown.
type StatusSummary struct {
	Status  PaymentStatus
	Count   int
	Revenue decimal.Decimal
}

// NormalizeTaxID strips everything but digits, so formatted and bare tax ids compare equal.
func NormalizeTaxID(taxID string) string {
	var b strings.Builder
	b.Grow(len(taxID))
	for _, r := range taxID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
