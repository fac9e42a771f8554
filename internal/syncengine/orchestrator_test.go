package syncengine

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/tracker-sync/internal/trackerapi"
)

func TestSafeCountersAggregatesUnderConcurrency(t *testing.T) {
	c := &safeCounters{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.incProcessed()
			c.incCreated()
			c.addHistory(2)
		}()
	}
	wg.Wait()

	snap := c.snapshot()
	assert.Equal(t, 100, snap.TasksProcessed)
	assert.Equal(t, 100, snap.TasksCreated)
	assert.Equal(t, 200, snap.HistoryEntriesProcessed)
	assert.Equal(t, 0, snap.ErrorsCount)
}

func TestSafeCountersIncUpdatedAndErrors(t *testing.T) {
	c := &safeCounters{}
	c.incProcessed()
	c.incUpdated()
	c.incErrors()

	snap := c.snapshot()
	assert.Equal(t, 1, snap.TasksProcessed)
	assert.Equal(t, 1, snap.TasksUpdated)
	assert.Equal(t, 0, snap.TasksCreated)
	assert.Equal(t, 1, snap.ErrorsCount)
}

func TestMarshalLinksRoundTrips(t *testing.T) {
	links := []trackerapi.LinkDTO{
		{TypeID: "subtask", Direction: "inward", TargetKey: "DOWN-1"},
	}
	raw, err := marshalLinks(links)
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "DOWN-1", decoded[0]["target_key"])
}

func TestExitCodeContract(t *testing.T) {
	assert.Equal(t, ExitCode(0), ExitSuccess)
	assert.Equal(t, ExitCode(1), ExitFailed)
	assert.Equal(t, ExitCode(2), ExitLockHeld)
	assert.Equal(t, ExitCode(130), ExitCancelled)
}
