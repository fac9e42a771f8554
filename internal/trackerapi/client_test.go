package trackerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Token: "tok", OrgID: "org1", RequestDelay: time.Millisecond})
	return c, srv
}

func TestGetTaskSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "org1", r.Header.Get("X-Org-ID"))
		_ = json.NewEncoder(w).Encode(TaskDTO{Key: "QUEUE-1", Summary: "hello"})
	})

	task, err := c.GetTask(context.Background(), "QUEUE-1")
	require.NoError(t, err)
	assert.Equal(t, "QUEUE-1", task.Key)
	assert.Equal(t, "hello", task.Summary)
}

func TestGetTaskNotFoundNoRetry(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetTask(context.Background(), "MISSING-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetTaskRetriesOnServerError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(TaskDTO{Key: "QUEUE-2"})
	})

	task, err := c.GetTask(context.Background(), "QUEUE-2")
	require.NoError(t, err)
	assert.Equal(t, "QUEUE-2", task.Key)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetTaskExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetTask(context.Background(), "QUEUE-3")
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestSearchStopsOnShortPage(t *testing.T) {
	page := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		var resp searchResponse
		if page == 1 {
			resp.Keys = []string{"A-1", "A-2"}
		} else {
			resp.Keys = []string{"A-3"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	it := c.Search("queue: A", 2, 0)
	var all []string
	for {
		keys, more, err := it.Next(context.Background())
		require.NoError(t, err)
		all = append(all, keys...)
		if !more {
			break
		}
	}
	assert.Equal(t, []string{"A-1", "A-2", "A-3"}, all)
	assert.Equal(t, 2, page)
}

func TestSearchRespectsLimit(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{Keys: []string{"A-1", "A-2", "A-3"}})
	})

	it := c.Search("queue: A", 3, 2)
	keys, more, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1", "A-2"}, keys)
	assert.False(t, more)

	keys, more, err = it.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.False(t, more)
}

func TestGetTasksBatchSplitsAtMaxBatchSize(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		keys := body["keys"].([]interface{})
		resp := batchResponse{}
		for _, k := range keys {
			resp.Tasks = append(resp.Tasks, TaskDTO{Key: k.(string)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	keys := make([]string, maxBatchSize+10)
	for i := range keys {
		keys[i] = "K-" + string(rune('A'+i%26))
	}
	out, err := c.GetTasksBatch(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.NotEmpty(t, out)
}

func TestRecordRateLimitHitDoublesExactlyOncePerThresholdUnderConcurrency(t *testing.T) {
	c := New(Config{BaseURL: "http://unused", RequestDelay: 10 * time.Millisecond})
	initial := c.currentDelay

	const hits = 9 // exactly 3 full crossings of rateLimitDoubleThreshold (3)
	var wg sync.WaitGroup
	for i := 0; i < hits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.recordRateLimitHit()
		}()
	}
	wg.Wait()

	c.delayMu.Lock()
	defer c.delayMu.Unlock()
	assert.Equal(t, initial*8, c.currentDelay) // doubled 3 times, not 9
	assert.Equal(t, int32(0), c.consecutive429)
}
