package shopify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IDBatchSize is the maximum number of ids per filter parameter; the API
// rejects oversized id lists.
const IDBatchSize = 50

// FetchAll drains a paginated collection endpoint and returns every page in
// request order, the terminal page included.
//
// The initial request carries the given query parameters. Afterwards the
// response decides: no Link header means the page just received is terminal;
// a Link with rel="next" supplies a self-contained cursor URL that is
// followed with no parameters re-attached; any other Link is terminal.
//
// Any transport failure or non-success status fails the whole fetch and the
// pages already received are discarded; callers must not assume resumability.
func (c *Client) FetchAll(ctx context.Context, resource Resource, params url.Values) ([]Page, error) {
	rawURL := resourceURL(c.cfg.Shop, c.cfg.APIVersion, resource)

	var pages []Page
	startTime := time.Now()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &TransportError{Resource: resource, Err: err}
		}
		if params != nil {
			req.URL.RawQuery = params.Encode()
			params = nil
		}

		resp, err := c.get(req, resource)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{Resource: resource, Err: err}
		}

		pages = append(pages, Page(body))
		pagesFetchedTotal.WithLabelValues(string(resource)).Inc()

		next, ok := nextCursor(resp.Header)
		if !ok {
			break
		}

		c.logger.Debug().
			Str("resource", string(resource)).
			Str("cursor", next).
			Msg("Following pagination cursor")
		rawURL = next
	}

	c.logger.Info().
		Str("resource", string(resource)).
		Int("pages", len(pages)).
		Dur("duration", time.Since(startTime)).
		Msg("Fetch complete")

	return pages, nil
}

// nextCursor extracts the rel="next" URL from a Link header. An absent Link
// header, or one without a next relation, marks the terminal page.
func nextCursor(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}

	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, segment := range segments[1:] {
			if strings.TrimSpace(segment) == `rel="next"` {
				return target, true
			}
		}
	}
	return "", false
}

// SplitIDs splits an id-filter list into batches of at most size elements,
// order preserved. Each batch is an independent FetchAll call whose pages the
// caller concatenates.
func SplitIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = IDBatchSize
	}

	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
