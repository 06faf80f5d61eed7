package main

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-reconciler/internal/model"
)

type customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CpfCnpj     string `json:"cpfCnpj"`
	Email       string `json:"email,omitempty"`
	MobilePhone string `json:"mobilePhone,omitempty"`
	Deleted     bool   `json:"deleted"`
	DateCreated string `json:"dateCreated"`
}

type payment struct {
	ID          string          `json:"id"`
	Customer    string          `json:"customer"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Status      string          `json:"status"`
	BillingType string          `json:"billingType"`
	DueDate     string          `json:"dueDate"`
	PaymentDate string          `json:"paymentDate,omitempty"`
	DateCreated string          `json:"dateCreated"`
}

// fixtures is the whole fake ledger. Failures maps a customer id to the
// HTTP status returned for any request about that customer.
type fixtures struct {
	Customers []customer     `json:"customers"`
	Payments  []payment      `json:"payments"`
	Failures  map[string]int `json:"failures"`
}

func loadFixtures(path string, fallback []byte) (*fixtures, error) {
	data := fallback
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read fixtures")
		}
	}

	var f fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	if f.Failures == nil {
		f.Failures = make(map[string]int)
	}
	sort.SliceStable(f.Payments, func(i, j int) bool {
		return f.Payments[i].DateCreated < f.Payments[j].DateCreated
	})
	return &f, nil
}

func (f *fixtures) customer(id string) (customer, bool) {
	for _, c := range f.Customers {
		if c.ID == id {
			return c, true
		}
	}
	return customer{}, false
}

func (f *fixtures) customersByTaxID(taxID string) []customer {
	want := model.NormalizeTaxID(taxID)
	var out []customer
	for _, c := range f.Customers {
		if model.NormalizeTaxID(c.CpfCnpj) == want {
			out = append(out, c)
		}
	}
	return out
}

func (f *fixtures) paymentsOf(customerID string) []payment {
	var out []payment
	for _, p := range f.Payments {
		if p.Customer == customerID {
			out = append(out, p)
		}
	}
	return out
}

// paymentsCreatedSince compares ISO dates as strings, which orders them correctly.
func (f *fixtures) paymentsCreatedSince(since string) []payment {
	var out []payment
	for _, p := range f.Payments {
		if strings.Compare(p.DateCreated, since) >= 0 {
			out = append(out, p)
		}
	}
	return out
}

func (f *fixtures) failureFor(customerID string) int {
	return f.Failures[customerID]
}
