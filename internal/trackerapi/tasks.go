package trackerapi

import (
	"context"
	"fmt"
)

// GetTask fetches one task by key.
func (c *Client) GetTask(ctx context.Context, key string) (*TaskDTO, error) {
	var dto TaskDTO
	if err := c.execWithRetry(ctx, "GET", "/v3/issues/"+key, map[string]string{"expand": "links"}, nil, &dto); err != nil {
		return nil, fmt.Errorf("trackerapi: get_task %s: %w", key, err)
	}
	return &dto, nil
}

// GetTasksBatch fetches multiple tasks in as few round-trips as the
// server's fixed maximum batch size allows, amortizing per-task overhead
// (spec.md §4.1).
func (c *Client) GetTasksBatch(ctx context.Context, keys []string) (map[string]TaskDTO, error) {
	out := make(map[string]TaskDTO, len(keys))
	for start := 0; start < len(keys); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		var resp batchResponse
		if err := c.execWithRetry(ctx, "POST", "/v3/issues/_bulk", nil, map[string]interface{}{
			"keys":   chunk,
			"expand": "links",
		}, &resp); err != nil {
			return nil, fmt.Errorf("trackerapi: get_tasks_batch: %w", err)
		}
		for _, t := range resp.Tasks {
			out[t.Key] = t
		}
	}
	return out, nil
}

// GetChangelog fetches the ordered changelog for one task.
func (c *Client) GetChangelog(ctx context.Context, key string) ([]ChangelogEvent, error) {
	var resp changelogResponse
	if err := c.execWithRetry(ctx, "GET", "/v3/issues/"+key+"/changelog", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("trackerapi: get_changelog %s: %w", key, err)
	}
	return resp.Events, nil
}
