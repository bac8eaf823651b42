// Package mmr implements Maximal Marginal Relevance selection over embedding vectors.
package mmr

import "math"

const (
	// DefaultK is the default number of candidates to select.
	DefaultK = 12
	// DefaultLambda weights relevance against diversity; higher favors relevance.
	DefaultLambda = 0.7

	epsilon = 1e-8
)

// Cosine returns the cosine similarity of a and b over their shared-length prefix.
// Zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + epsilon)
}

// Select greedily picks up to k candidate indices, scoring each remaining candidate as
// lambda*relevance - (1-lambda)*redundancy, where relevance is its similarity to query and
// redundancy its highest similarity to an already selected candidate. Ties go to the
// lower index. Indices are returned in selection order. Lambda is not range-checked.
func Select(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return []int{}
	}
	k = min(k, len(candidates))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c)
	}

	// redundancy[i] tracks max similarity of candidate i to the selected set.
	redundancy := make([]float64, len(candidates))
	pool := make([]int, len(candidates))
	for i := range pool {
		pool[i] = i
	}

	selected := make([]int, 0, k)
	for len(selected) < k && len(pool) > 0 {
		best := -1
		bestScore := math.Inf(-1)
		for pos, i := range pool {
			score := lambda*relevance[i] - (1-lambda)*redundancy[i]
			if best == -1 || score > bestScore {
				best, bestScore = pos, score
			}
		}

		chosen := pool[best]
		selected = append(selected, chosen)
		pool = append(pool[:best], pool[best+1:]...)

		for _, i := range pool {
			if sim := Cosine(candidates[i], candidates[chosen]); sim > redundancy[i] || len(selected) == 1 {
				redundancy[i] = sim
			}
		}
	}
	return selected
}
