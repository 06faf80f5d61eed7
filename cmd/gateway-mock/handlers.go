package main

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	contentType     = "application/json"
	defaultLimit    = 10
	maxLimit        = 100
	apiPrefix       = "/v3"
	accessTokenName = "access_token"
)

type listResponse[T any] struct {
	Object     string `json:"object"`
	HasMore    bool   `json:"hasMore"`
	TotalCount int    `json:"totalCount"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	Data       []T    `json:"data"`
}

type errorItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type server struct {
	fixtures *fixtures
	apiKey   string
}

func newHandler(f *fixtures, apiKey string) http.Handler {
	s := &server{fixtures: f, apiKey: apiKey}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/customers", s.listCustomers)
	mux.HandleFunc("GET "+apiPrefix+"/customers/{id}", s.getCustomer)
	mux.HandleFunc("GET "+apiPrefix+"/payments", s.listPayments)
	return s.authenticate(mux)
}

func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get(accessTokenName) != s.apiKey {
			writeErrors(w, http.StatusUnauthorized, "A chave de API fornecida é inválida")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers := s.fixtures.Customers
	if taxID := r.URL.Query().Get("cpfCnpj"); taxID != "" {
		customers = s.fixtures.customersByTaxID(taxID)
	}
	for _, c := range customers {
		if status := s.fixtures.failureFor(c.ID); status != 0 {
			writeErrors(w, status, "injected failure for "+c.ID)
			return
		}
	}
	writeList(w, r, customers)
}

func (s *server) getCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if status := s.fixtures.failureFor(id); status != 0 {
		writeErrors(w, status, "injected failure for "+id)
		return
	}

	c, ok := s.fixtures.customer(id)
	if !ok {
		writeErrors(w, http.StatusNotFound, "Cliente não encontrado.")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) listPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if customerID := query.Get("customer"); customerID != "" {
		if status := s.fixtures.failureFor(customerID); status != 0 {
			writeErrors(w, status, "injected failure for "+customerID)
			return
		}
		writeList(w, r, s.fixtures.paymentsOf(customerID))
		return
	}

	if since := query.Get("dateCreated[ge]"); since != "" {
		writeList(w, r, s.fixtures.paymentsCreatedSince(since))
		return
	}
	writeList(w, r, s.fixtures.Payments)
}

func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	limit := intParam(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := max(intParam(r, "offset", 0), 0)

	resp := listResponse[T]{Object: "list", TotalCount: len(items), Limit: limit, Offset: offset, Data: []T{}}
	if offset < len(items) {
		end := min(offset+limit, len(items))
		resp.Data = items[offset:end]
		resp.HasMore = end < len(items)
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrors(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, map[string][]errorItem{
		"errors": {{Code: "invalid_action", Description: description}},
	})
}
