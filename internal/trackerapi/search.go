package trackerapi

import (
	"context"
	"fmt"
)

const maxBatchSize = 100

// ScrollIterator lazily pages through a search result set. Callers stop
// early by simply not calling Next again; no explicit Close is required
// since the remote scroll expires on its own TTL.
type ScrollIterator struct {
	client    *Client
	filter    string
	pageSize  int
	scrollID  string
	opened    bool
	exhausted bool
	limit     int
	fetched   int
}

// Search opens a scroll over the remote API using filter, with optional
// limit (0 = unbounded). Pages are fetched lazily as the iterator is
// advanced, per spec.md §4.1.
func (c *Client) Search(filter string, pageSize, limit int) *ScrollIterator {
	if pageSize <= 0 || pageSize > maxBatchSize {
		pageSize = 50
	}
	return &ScrollIterator{client: c, filter: filter, pageSize: pageSize, limit: limit}
}

// Next fetches the next page of task keys. The returned bool is false when
// this page is the last one (a short page, or the limit was reached); the
// keys of that last page are still returned. Calls after that return an
// empty slice and false.
func (it *ScrollIterator) Next(ctx context.Context) ([]string, bool, error) {
	if it.exhausted {
		return nil, false, nil
	}
	if it.limit > 0 && it.fetched >= it.limit {
		it.exhausted = true
		return nil, false, nil
	}

	query := map[string]string{
		"filter":    it.filter,
		"page_size": fmt.Sprintf("%d", it.pageSize),
		"expand":    "links",
	}
	if it.opened {
		query["scroll_id"] = it.scrollID
	}

	var resp searchResponse
	if err := it.client.execWithRetry(ctx, "GET", "/v3/issues/_search", query, nil, &resp); err != nil {
		return nil, false, fmt.Errorf("trackerapi: search page: %w", err)
	}
	it.opened = true
	if resp.ScrollID != "" {
		it.scrollID = resp.ScrollID
	}

	keys := resp.Keys
	truncated := it.limit > 0 && it.fetched+len(keys) > it.limit
	if truncated {
		keys = keys[:it.limit-it.fetched]
	}
	it.fetched += len(keys)

	if truncated || len(resp.Keys) < it.pageSize {
		it.exhausted = true
	}
	return keys, !it.exhausted, nil
}
