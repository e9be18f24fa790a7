package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockPool is a pool row served by MockIndexer.
type MockPool struct {
	Currency0   string `json:"currency0"`
	Currency1   string `json:"currency1"`
	Fee         int64  `json:"fee"`
	TickSpacing int64  `json:"tickSpacing"`
	Hooks       string `json:"hooks"`
}

// MockIndexer is a mock HTTP server that simulates the hyperindex GraphQL API.
type MockIndexer struct {
	*httptest.Server

	mu       sync.RWMutex
	price    string
	pools    []MockPool
	status   int
	gqlError string
	queries  []string
}

// NewMockIndexer creates a new mock indexer server.
func NewMockIndexer() *MockIndexer {
	mock := &MockIndexer{status: http.StatusOK}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&req) != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.queries = append(mock.queries, req.Query)
		status := mock.status
		gqlError := mock.gqlError
		price := mock.price
		pools := mock.pools
		mock.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "indexer unavailable", status)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if gqlError != "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]string{{"message": gqlError}},
			})
			return
		}

		data := map[string]interface{}{}
		switch {
		case strings.Contains(req.Query, "Token("):
			rows := []map[string]string{}
			if price != "" {
				rows = append(rows, map[string]string{"priceUsd": price})
			}
			data["Token"] = rows
		case strings.Contains(req.Query, "Pool("):
			rows := []MockPool{}
			for _, p := range pools {
				if poolMatches(req.Query, p) {
					rows = append(rows, p)
				}
			}
			data["Pool"] = rows
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

func poolMatches(query string, p MockPool) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, strings.ToLower(strings.TrimPrefix(p.Currency0, "0x"))) ||
		strings.Contains(q, strings.ToLower(strings.TrimPrefix(p.Currency1, "0x")))
}

// SetPrice sets the priceUsd returned for token queries. Empty returns no rows.
func (m *MockIndexer) SetPrice(price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.price = price
}

// AddPool adds a pool row.
func (m *MockIndexer) AddPool(pool MockPool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = append(m.pools, pool)
}

// SetStatus makes every request fail with the given HTTP status.
func (m *MockIndexer) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// SetGraphQLError makes every request return a GraphQL error payload.
func (m *MockIndexer) SetGraphQLError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gqlError = msg
}

// Queries returns the GraphQL queries received so far.
func (m *MockIndexer) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries...)
}
