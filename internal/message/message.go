package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SourceSync       = "sync"
	SourceCorrection = "correction"
	SourceWebhook    = "webhook"
)

// PaymentEvent is a gateway webhook delivery forwarded to Kafka unchanged.
type PaymentEvent struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Payment json.RawMessage `json:"payment"`
}

// RegistrationStatusChanged is published whenever a registration is created
// or its payment columns change.
type RegistrationStatusChanged struct {
	ID             uuid.UUID       `json:"id"`
	TaxID          string          `json:"taxId"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	Installments   int             `json:"installments"`
	AsaasPaymentID string          `json:"asaasPaymentId,omitempty"`
	Source         string          `json:"source"`
	ChangedAt      time.Time       `json:"changedAt"`
}
