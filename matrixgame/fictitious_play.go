package matrixgame

import (
	"math"

	"github.com/golang/glog"
)

// DefaultSteps is the iteration budget used for both dynamics when the
// caller does not choose one.
const DefaultSteps = 200

// FictitiousPlay runs a best-response dynamic against the empirical
// distribution of past best responses and returns that distribution.
//
// The opponent belief starts uniform. Each step picks the row with the
// highest expected payoff against the current belief (lowest index on ties),
// counts it, and sets the belief to the normalized counts.
func FictitiousPlay(m Matrix, steps int) []float64 {
	n := len(m)
	switch n {
	case 0:
		return []float64{}
	case 1:
		return []float64{1}
	}

	beliefs := uniform(n)
	counts := make([]int, n)
	ev := allocFloatSlice(n)
	defer freeFloatSlice(ev)
	for i := 1; i <= steps; i++ {
		ev = m.MulVec(beliefs, ev)
		_, br := argMax(ev)
		counts[br]++
		normalize(counts, beliefs)

		if steps >= 10 && i%(steps/10) == 0 {
			glog.V(3).Infof("After %d iterations, fictitious play weights: %v", i, beliefs)
		}
	}

	return beliefs
}

// normalize writes counts / sum(counts) into dst.
func normalize(counts []int, dst []float64) {
	total := 0
	for _, v := range counts {
		total += v
	}

	for i, v := range counts {
		dst[i] = float64(v) / float64(total)
	}
}

// argMax returns the first maximal value of vs and its index.
func argMax(vs []float64) (float64, int) {
	best := math.Inf(-1)
	bestIdx := 0
	for i, v := range vs {
		if v > best {
			best = v
			bestIdx = i
		}
	}

	return best, bestIdx
}
