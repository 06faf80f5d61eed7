package aggregate

import (
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/description"
	"payment-reconciler/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Status is the authoritative payment picture of one customer.
type Status struct {
	Status            model.PaymentStatus
	PaidValue         decimal.Decimal
	TotalValue        decimal.Decimal
	PaidInstallments  int
	TotalInstallments int
	PaymentPercentage decimal.Decimal
}

// Aggregate reduces one customer's event payments to a single status.
func Aggregate(payments []model.ExternalPayment, parser *description.Parser) Status {
	result := Status{
		Status:            model.StatusPending,
		PaidValue:         decimal.Zero,
		TotalValue:        decimal.Zero,
		PaymentPercentage: decimal.Zero,
	}
	if len(payments) == 0 {
		return result
	}

	anyInstallment := false
	paidCount := 0

	for _, p := range payments {
		result.TotalValue = result.TotalValue.Add(p.Value)

		paid := p.Status.Paid()
		if paid {
			result.PaidValue = result.PaidValue.Add(p.Value)
			paidCount++
		}

		parsed := parser.Parse(p.Description)
		if !parsed.IsInstallment {
			continue
		}
		anyInstallment = true
		if parsed.TotalInstallments > result.TotalInstallments {
			result.TotalInstallments = parsed.TotalInstallments
		}
	}

	if anyInstallment {
		result.PaidInstallments = paidCount
		// "2ª parcela" style descriptions carry no total
		if result.TotalInstallments == 0 {
			result.TotalInstallments = len(payments)
		}
	} else {
		result.TotalInstallments = 1
		if result.PaidValue.IsPositive() {
			result.PaidInstallments = 1
		}
	}

	result.Status = classify(result.PaidValue, result.TotalValue)
	result.PaymentPercentage = Percentage(result.PaidValue, result.TotalValue)

	return result
}

func classify(paid, total decimal.Decimal) model.PaymentStatus {
	switch {
	case !paid.IsPositive():
		return model.StatusPending
	case paid.GreaterThanOrEqual(total):
		return model.StatusPaid
	default:
		return model.StatusPartial
	}
}

// Percentage returns part/total*100 rounded to one decimal place, clamped to
// [0, 100]; a zero total yields 0.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	pct := part.Mul(hundred).Div(total).Round(1)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
