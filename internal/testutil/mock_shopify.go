// Package testutil provides testing utilities for the Shopify extraction
// pipeline.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockResponse defines the behavior for a mock Shopify endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockShopify is a configurable mock Shopify Admin API server for testing.
type MockShopify struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	Requests     []*http.Request
	AuthUsers    []string
}

// NewMockShopify creates a new mock Shopify server.
func NewMockShopify() *MockShopify {
	mock := &MockShopify{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.Requests = append(mock.Requests, r.Clone(r.Context()))
		if user, _, ok := r.BasicAuth(); ok {
			mock.AuthUsers = append(mock.AuthUsers, user)
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockShopify) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockShopify) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockShopify) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
	m.AuthUsers = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockShopify) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockShopify) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPagedResponse serves a chain of pages for a path. Every page except the
// last carries a Link header with a rel="next" cursor URL pointing back at
// the same path with a page_info token, the way the Admin API paginates.
func (m *MockShopify) SetPagedResponse(path string, pages []string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		index := 0
		if token := r.URL.Query().Get("page_info"); token != "" {
			fmt.Sscanf(token, "cursor-%d", &index)
		}
		if index >= len(pages) {
			index = len(pages) - 1
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Shopify-Shop-Api-Call-Limit", "1/40")
		if index < len(pages)-1 {
			next := fmt.Sprintf("%s%s?page_info=cursor-%d", m.server.URL, path, index+1)
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pages[index]))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockShopify) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// RequestsForPath returns the recorded requests that hit the given path.
func (m *MockShopify) RequestsForPath(path string) []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*http.Request
	for _, r := range m.Requests {
		if r.URL.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// defaultHandler returns an empty collection with Shopify-like headers.
func (m *MockShopify) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Shopify-Shop-Api-Call-Limit", "1/40")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{}`))
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors": "Exceeded 2 calls per second for api client"}`,
		Headers: map[string]string{
			"X-Shopify-Shop-Api-Call-Limit": "40/40",
			"Retry-After":                   "2.0",
			"Content-Type":                  "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
