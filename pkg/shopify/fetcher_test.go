package shopify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/mlovary/shopify-etl/internal/testutil"
	"github.com/mlovary/shopify-etl/pkg/config"
)

// rewriteTransport redirects any request to the mock server.
type rewriteTransport struct {
	mock *testutil.MockShopify
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mockURL := t.mock.URL()
	req.URL.Scheme = "http"
	req.URL.Host = mockURL[7:] // strip "http://"
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, mock *testutil.MockShopify, mode config.AuthMode) *Client {
	t.Helper()

	client, err := New(config.Shopify{
		Shop:       "test-mme",
		APIVersion: "2020-01",
		Username:   "key",
		Password:   "secret",
		AuthMode:   mode,
		Timeout:    5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	client.SetHTTPClient(&http.Client{
		Transport: &rewriteTransport{mock: mock},
		Timeout:   5 * time.Second,
	})
	return client
}

func TestFetchAll_SinglePageWithoutLink(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	mock.SetResponse("/admin/api/2020-01/orders.json", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"orders": []}`,
	})

	client := newTestClient(t, mock, config.AuthBasicHeader)

	pages, err := client.FetchAll(context.Background(), ResourceOrders, nil)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	if len(pages) != 1 {
		t.Errorf("Expected 1 page, got %d", len(pages))
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 request, got %d", mock.GetRequestCount())
	}
}

func TestFetchAll_FollowsCursorChain(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	mock.SetPagedResponse("/admin/api/2020-01/orders.json", []string{
		`{"orders": [{"id": 1}]}`,
		`{"orders": [{"id": 2}]}`,
		`{"orders": [{"id": 3}]}`,
	})

	client := newTestClient(t, mock, config.AuthBasicHeader)

	params := url.Values{}
	params.Set("limit", "250")
	params.Set("status", "any")

	pages, err := client.FetchAll(context.Background(), ResourceOrders, params)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	// N pages in the chain means exactly N pages and N requests.
	if len(pages) != 3 {
		t.Errorf("Expected 3 pages, got %d", len(pages))
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("Expected 3 requests, got %d", mock.GetRequestCount())
	}

	orders, err := DecodeOrders(pages)
	if err != nil {
		t.Fatalf("DecodeOrders() error: %v", err)
	}
	for i, want := range []int64{1, 2, 3} {
		if orders[i].ID != want {
			t.Errorf("Page order not preserved: orders[%d].ID = %d, want %d", i, orders[i].ID, want)
		}
	}
}

func TestFetchAll_CursorRequestsCarryNoParams(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	mock.SetPagedResponse("/admin/api/2020-01/orders.json", []string{
		`{"orders": [{"id": 1}]}`,
		`{"orders": [{"id": 2}]}`,
	})

	client := newTestClient(t, mock, config.AuthBasicHeader)

	params := url.Values{}
	params.Set("limit", "250")
	params.Set("status", "any")

	if _, err := client.FetchAll(context.Background(), ResourceOrders, params); err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	requests := mock.RequestsForPath("/admin/api/2020-01/orders.json")
	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}

	first := requests[0].URL.Query()
	if first.Get("status") != "any" {
		t.Error("Initial request must carry the caller's query parameters")
	}

	// The cursor URL is self-contained; the caller's parameters must not be
	// re-attached.
	second := requests[1].URL.Query()
	if second.Get("status") != "" || second.Get("limit") != "" {
		t.Errorf("Cursor request re-attached parameters: %v", second)
	}
	if second.Get("page_info") == "" {
		t.Error("Cursor request lost the page_info token")
	}
}

func TestFetchAll_FailureDiscardsPartialResults(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()

	// First page links to a cursor that blows up.
	mock.SetHandler("/admin/api/2020-01/orders.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_info") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"errors": "boom"}`))
			return
		}
		next := mock.URL() + "/admin/api/2020-01/orders.json?page_info=cursor-1"
		w.Header().Set("Link", `<`+next+`>; rel="next"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orders": [{"id": 1}]}`))
	})

	client := newTestClient(t, mock, config.AuthBasicHeader)

	pages, err := client.FetchAll(context.Background(), ResourceOrders, nil)
	if err == nil {
		t.Fatal("FetchAll() = nil error, want failure")
	}
	if pages != nil {
		t.Errorf("Expected partial results to be discarded, got %d pages", len(pages))
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
}

func TestNextCursor(t *testing.T) {
	tests := []struct {
		name   string
		link   string
		want   string
		wantOK bool
	}{
		{
			name: "no link header",
		},
		{
			name: "next only",
			link: `<https://x.myshopify.com/admin/api/2020-01/orders.json?page_info=abc>; rel="next"`,
			want: "https://x.myshopify.com/admin/api/2020-01/orders.json?page_info=abc", wantOK: true,
		},
		{
			name: "previous and next",
			link: `<https://x.myshopify.com/a.json?page_info=p>; rel="previous", <https://x.myshopify.com/a.json?page_info=n>; rel="next"`,
			want: "https://x.myshopify.com/a.json?page_info=n", wantOK: true,
		},
		{
			name: "previous only is terminal",
			link: `<https://x.myshopify.com/a.json?page_info=p>; rel="previous"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.link != "" {
				headers.Set("Link", tt.link)
			}

			got, ok := nextCursor(headers)
			if ok != tt.wantOK {
				t.Fatalf("nextCursor() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("nextCursor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitIDs(t *testing.T) {
	ids := make([]string, 120)
	for i := range ids {
		ids[i] = "id"
	}

	batches := SplitIDs(ids, 50)

	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	for i, want := range []int{50, 50, 20} {
		if len(batches[i]) != want {
			t.Errorf("Batch %d size = %d, want %d", i, len(batches[i]), want)
		}
	}
}

func TestSplitIDs_Empty(t *testing.T) {
	if batches := SplitIDs(nil, 50); batches != nil {
		t.Errorf("Expected no batches for empty input, got %d", len(batches))
	}
}
