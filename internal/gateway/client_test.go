package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/model"
)

const baseURL = "http://gateway.test/v3"

func newTestClient(url string, timeoutMs int) *Client {
	return NewClient(config.Gateway{
		Environment: config.EnvironmentSandbox,
		Sandbox:     config.GatewayEndpoint{BaseURL: url, APIKey: "test-key"},
		EventName:   "Evento X",
		TimeoutMs:   timeoutMs,
	}, slog.Default())
}

func TestClient_ListCustomersByTaxID(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/customers").
		MatchParam("cpfCnpj", "12345678909").
		MatchHeader("access_token", "test-key").
		Reply(200).
		JSON(map[string]any{
			"hasMore": false,
			"data": []map[string]any{
				{"id": "cus_1", "name": " Maria ", "cpfCnpj": "123.456.789-09", "email": "maria@example.com", "mobilePhone": "11999990000", "dateCreated": "2025-02-01"},
				{"id": "cus_old", "name": "Maria", "cpfCnpj": "12345678909", "deleted": true},
			},
		})

	customers, err := newTestClient(baseURL, 10_000).ListCustomersByTaxID(context.Background(), "12345678909")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, model.ExternalCustomer{
		ID:        "cus_1",
		TaxID:     "12345678909",
		Name:      "Maria",
		Email:     "maria@example.com",
		Phone:     "11999990000",
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}, customers[0])
	assert.True(t, gock.IsDone())
}

func TestClient_GetCustomer_NotFound(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/customers/cus_missing").
		Reply(404).
		JSON(map[string]any{"errors": []map[string]string{{"code": "not_found", "description": "Cliente não encontrado."}}})

	_, err := newTestClient(baseURL, 10_000).GetCustomer(context.Background(), "cus_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.Code)
	assert.Contains(t, statusErr.Error(), "Cliente não encontrado.")
}

func TestClient_ListPayments(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/payments").
		MatchParam("customer", "cus_1").
		MatchParam("limit", "100").
		Reply(200).
		JSON(map[string]any{
			"data": []map[string]any{
				{"id": "pay_1", "customer": "cus_1", "description": "Evento X Parcela 1 de 2", "value": 200.5, "status": "CONFIRMED", "billingType": "CREDIT_CARD", "dueDate": "2025-03-10", "paymentDate": "2025-03-09", "dateCreated": "2025-03-01"},
				{"id": "pay_2", "customer": "cus_1", "description": nil, "value": "200.50", "status": "pending", "dueDate": "2025-04-10", "paymentDate": nil},
			},
		})

	payments, err := newTestClient(baseURL, 10_000).ListPayments(context.Background(), "cus_1", 100)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	assert.Equal(t, "pay_1", payments[0].ID)
	assert.True(t, decimal.RequireFromString("200.5").Equal(payments[0].Value))
	assert.Equal(t, model.GatewayConfirmed, payments[0].Status)
	require.NotNil(t, payments[0].PaymentDate)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), *payments[0].PaymentDate)

	assert.Equal(t, "", payments[1].Description)
	assert.Equal(t, model.GatewayPending, payments[1].Status)
	assert.Nil(t, payments[1].PaymentDate)
}

func TestClient_ListPaymentsCreatedSince(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/payments").
		MatchParam("dateCreated[ge]", "2025-01-15").
		MatchParam("limit", "50").
		MatchParam("offset", "100").
		Reply(200).
		JSON(map[string]any{
			"hasMore": true,
			"data": []map[string]any{
				{"id": "pay_9", "customer": "cus_9", "description": "Evento X", "value": 10, "status": "RECEIVED"},
			},
		})

	page, err := newTestClient(baseURL, 10_000).ListPaymentsCreatedSince(context.Background(), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 50, 100)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, 100, page.Offset)
	require.Len(t, page.Payments, 1)
	assert.Equal(t, "cus_9", page.Payments[0].CustomerID)
}

func TestClient_ListPaymentsCreatedSince_KeepsValidRecords(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/payments").
		MatchParam("offset", "^0$").
		Reply(200).
		JSON(map[string]any{
			"hasMore": true,
			"data": []map[string]any{
				{"id": "pay_1", "customer": "cus_1", "description": "Evento X", "value": 10, "status": "RECEIVED"},
				{"id": "pay_2", "customer": "cus_2", "description": "Evento X Parcela 1 de 2", "status": "PENDING"},
				{"id": "pay_3", "customer": "cus_3", "description": "Evento X", "value": "abc", "status": "PENDING"},
				{"id": "pay_4", "customer": "cus_4", "description": "Evento X", "value": 30, "status": "PENDING"},
			},
		})

	page, err := newTestClient(baseURL, 10_000).ListPaymentsCreatedSince(context.Background(), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 50, 0)
	require.NoError(t, err)
	assert.True(t, page.HasMore)

	require.Len(t, page.Payments, 2)
	assert.Equal(t, "pay_1", page.Payments[0].ID)
	assert.Equal(t, "pay_4", page.Payments[1].ID)

	require.Len(t, page.Rejected, 2)
	assert.Equal(t, "pay_2", page.Rejected[0].ID)
	assert.Equal(t, "Evento X Parcela 1 de 2", page.Rejected[0].Description)
	assert.True(t, errors.Is(page.Rejected[0].Err, ErrProtocol))
	assert.Equal(t, "pay_3", page.Rejected[1].ID)
	assert.True(t, errors.Is(page.Rejected[1].Err, ErrProtocol))
}

func TestClient_RejectsRecordsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		payment map[string]any
	}{
		{name: "missing value", payment: map[string]any{"id": "pay_1", "customer": "cus_1", "status": "PENDING"}},
		{name: "missing status", payment: map[string]any{"id": "pay_1", "customer": "cus_1", "value": 10}},
		{name: "missing customer", payment: map[string]any{"id": "pay_1", "value": 10, "status": "PENDING"}},
		{name: "negative value", payment: map[string]any{"id": "pay_1", "customer": "cus_1", "value": -1, "status": "PENDING"}},
		{name: "bad due date", payment: map[string]any{"id": "pay_1", "customer": "cus_1", "value": 1, "status": "PENDING", "dueDate": "10/03/2025"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()

			gock.New(baseURL).
				Get("/payments").
				Reply(200).
				JSON(map[string]any{"data": []map[string]any{tt.payment}})

			_, err := newTestClient(baseURL, 10_000).ListPayments(context.Background(), "cus_1", 10)
			assert.True(t, errors.Is(err, ErrProtocol), "got %v", err)
		})
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		mock     func()
		expected error
		status   int
	}{
		{
			name: "malformed json",
			mock: func() {
				gock.New(baseURL).Get("/customers/cus_1").Reply(200).BodyString(`{"id": "cus_1"`)
			},
			expected: ErrProtocol,
		},
		{
			name: "rate limited",
			mock: func() {
				gock.New(baseURL).Get("/customers/cus_1").Reply(429).BodyString("Too Many Requests")
			},
			status: 429,
		},
		{
			name: "server error",
			mock: func() {
				gock.New(baseURL).Get("/customers/cus_1").Reply(500)
			},
			status: 500,
		},
		{
			name: "network failure",
			mock: func() {
				gock.New(baseURL).Get("/customers/cus_1").ReplyError(errors.New("connection refused"))
			},
			expected: ErrNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mock()

			_, err := newTestClient(baseURL, 10_000).GetCustomer(context.Background(), "cus_1")
			require.Error(t, err)

			if tt.expected != nil {
				assert.True(t, errors.Is(err, tt.expected), "got %v", err)
			}
			if tt.status != 0 {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr), "got %v", err)
				assert.Equal(t, tt.status, statusErr.Code)
				assert.False(t, errors.Is(err, ErrNotFound))
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	startTime := time.Now()
	_, err := newTestClient(server.URL, 50).GetCustomer(context.Background(), "cus_1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(startTime), time.Second)
}

func TestClient_ContextDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL, 10_000).ListPayments(ctx, "cus_1", 10)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestDecodePayment(t *testing.T) {
	payment, err := DecodePayment([]byte(`{"id":"pay_9","customer":"cus_1","value":150.5,"status":"received","description":"Evento X Parcela 1 de 2","dueDate":"2025-03-10","paymentDate":"2025-03-09"}`))
	require.NoError(t, err)
	assert.Equal(t, "pay_9", payment.ID)
	assert.Equal(t, model.GatewayReceived, payment.Status)
	assert.True(t, decimal.RequireFromString("150.5").Equal(payment.Value))
	require.NotNil(t, payment.PaymentDate)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), *payment.PaymentDate)

	_, err = DecodePayment([]byte(`{"id":"pay_9","customer":"cus_1","status":"RECEIVED"}`))
	assert.True(t, errors.Is(err, ErrProtocol))

	_, err = DecodePayment([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrProtocol))
}
