package timeline

import (
	"sort"
	"time"
)

func toMS(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

func fromMS(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func sum(values []int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func countPositive(values []int64) int64 {
	var n int64
	for _, v := range values {
		if v > 0 {
			n++
		}
	}
	return n
}

// distribute splits total across len(weights) buckets proportionally to the
// weights using largest-remainder rounding, so the shares sum to total
// exactly. When every weight is zero the split is even. Ties go to the lower
// index.
func distribute(weights []int64, total int64) []int64 {
	shares := make([]int64, len(weights))
	if len(weights) == 0 || total == 0 {
		return shares
	}
	w := weights
	weightSum := sum(weights)
	if weightSum <= 0 {
		w = make([]int64, len(weights))
		for i := range w {
			w[i] = 1
		}
		weightSum = int64(len(w))
	}

	type remainder struct {
		index int
		value int64
	}
	rems := make([]remainder, 0, len(w))
	var assigned int64
	for i, weight := range w {
		product := weight * total
		shares[i] = product / weightSum
		assigned += shares[i]
		rems = append(rems, remainder{index: i, value: product % weightSum})
	}
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].value > rems[b].value
	})
	for i := 0; assigned < total; i++ {
		shares[rems[i%len(rems)].index]++
		assigned++
	}
	return shares
}
