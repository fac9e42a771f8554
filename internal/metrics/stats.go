package metrics

import "sort"

// Aggregate holds count/mean/P85 for one metric within a (quarter, group)
// cell.
type Aggregate struct {
	Count int
	Mean  float64
	P85   float64
}

// Summarize computes count, mean, and nearest-rank 85th percentile for
// values. Nearest-rank P85 per spec.md §4.5: rank = ceil(0.85 * n), clamped
// to [1, n], values sorted ascending.
func Summarize(values []int) Aggregate {
	if len(values) == 0 {
		return Aggregate{}
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	sum := 0
	for _, v := range sorted {
		sum += v
	}
	mean := float64(sum) / float64(len(sorted))

	rank := int(0.85*float64(len(sorted)) + 0.9999999)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}

	return Aggregate{
		Count: len(sorted),
		Mean:  mean,
		P85:   float64(sorted[rank-1]),
	}
}
