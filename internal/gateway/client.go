package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/model"
)

const maxErrorDetail = 256

// Client is a read-only client for the gateway's customer and payment
// endpoints. It holds no state besides its endpoint and credential; callers pace requests.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.Gateway, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint()
	return &Client{
		baseURL: strings.TrimRight(endpoint.BaseURL, "/"),
		apiKey:  endpoint.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

// ListCustomersByTaxID returns the non-deleted customers registered under taxID.
func (c *Client) ListCustomersByTaxID(ctx context.Context, taxID string) ([]model.ExternalCustomer, error) {
	query := url.Values{"cpfCnpj": {taxID}}

	var resp listResponse[customerRecord]
	if err := c.get(ctx, "list_customers", "/customers", query, &resp); err != nil {
		return nil, err
	}

	customers := make([]model.ExternalCustomer, 0, len(resp.Data))
	for _, r := range resp.Data {
		customer, err := r.toModel()
		if err != nil {
			return nil, err
		}
		if customer.Deleted {
			continue
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (model.ExternalCustomer, error) {
	var record customerRecord
	if err := c.get(ctx, "get_customer", "/customers/"+url.PathEscape(id), nil, &record); err != nil {
		return model.ExternalCustomer{}, err
	}
	return record.toModel()
}

// ListPayments returns up to limit payments of one customer.
func (c *Client) ListPayments(ctx context.Context, customerID string, limit int) ([]model.ExternalPayment, error) {
	query := url.Values{
		"customer": {customerID},
		"limit":    {strconv.Itoa(limit)},
	}

	var resp listResponse[paymentRecord]
	if err := c.get(ctx, "list_payments", "/payments", query, &resp); err != nil {
		return nil, err
	}
	return toPayments(resp.Data)
}

// ListPaymentsCreatedSince returns one page of payments created on or after since.
func (c *Client) ListPaymentsCreatedSince(ctx context.Context, since time.Time, limit, offset int) (PaymentPage, error) {
	query := url.Values{
		"dateCreated[ge]": {since.Format(dateLayout)},
		"limit":           {strconv.Itoa(limit)},
		"offset":          {strconv.Itoa(offset)},
	}

	var resp listResponse[json.RawMessage]
	if err := c.get(ctx, "list_payments_since", "/payments", query, &resp); err != nil {
		return PaymentPage{}, err
	}

	page := PaymentPage{Payments: make([]model.ExternalPayment, 0, len(resp.Data)), HasMore: resp.HasMore, Offset: offset}
	for _, raw := range resp.Data {
		payment, err := DecodePayment(raw)
		if err != nil {
			rejected := rejectedPayment(raw, err)
			rejectedRecordCounter.Inc()
			c.logger.WarnContext(ctx, "Rejected malformed payment record", "paymentId", rejected.ID, "error", err)
			page.Rejected = append(page.Rejected, rejected)
			continue
		}
		page.Payments = append(page.Payments, payment)
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	startTime := time.Now()
	err := c.do(ctx, path, query, out)
	requestDuration(endpoint).Update(float64(time.Since(startTime).Milliseconds()))
	requestCounter(endpoint, resultLabel(err)).Inc()
	return err
}

func (c *Client) do(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	c.logger.DebugContext(ctx, "Sending gateway request", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "payment-reconciler")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Error sending gateway request", "url", target, "error", err)
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "Error reading gateway response body", "url", target, "error", err)
		return classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "Received gateway error response", "url", target, "status", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode, Detail: errorDetail(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(ErrProtocol, "decode %s: %v", path, err)
	}
	return nil
}

type errorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// errorDetail extracts the gateway's error descriptions, falling back to the raw body.
func errorDetail(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		parts := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			parts = append(parts, e.Description)
		}
		return strings.Join(parts, "; ")
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	return detail
}

var rejectedRecordCounter = metrics.GetOrCreateCounter(`gateway_rejected_records_total{type="payment"}`)

func requestCounter(endpoint, result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(`gateway_requests_total{endpoint="` + endpoint + `",result="` + result + `"}`)
}

func requestDuration(endpoint string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(`gateway_request_duration_milliseconds{endpoint="` + endpoint + `"}`)
}

func resultLabel(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	case errors.As(err, &statusErr):
		return "http_" + strconv.Itoa(statusErr.Code)
	default:
		return "network_error"
	}
}
