package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryFormatsCommaSeparatedCount(t *testing.T) {
	s := Summary("rows written", 128450, 3*time.Minute+12*time.Second)
	assert.Equal(t, "128,450 rows written in 3m12s", s)
}
