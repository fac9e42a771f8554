package metrics

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary renders a human-readable one-line progress summary for CLI
// stdout, e.g. "1,284 tasks in 3m12s" instead of a bare unformatted count.
func Summary(label string, count int, elapsed time.Duration) string {
	return fmt.Sprintf("%s %s in %s", humanize.Comma(int64(count)), label, elapsed.Round(time.Second))
}
