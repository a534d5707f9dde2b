package retrieval

import "math"

// selectDiverse runs Maximal Marginal Relevance over the candidate vectors:
// each round picks the unselected candidate maximizing
//
//	lambda*sim(query, cand) - (1-lambda)*max over selected of sim(cand, sel)
//
// The first pick is therefore the candidate most similar to the query. Exact
// score ties go to the lowest original index, which keeps selection
// deterministic for a deterministic input ordering. Returns min(k, pool)
// distinct indices.
func selectDiverse(query []float32, candidates [][]float32, k int, lambda float64) []int {
	n := len(candidates)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	querySim := make([]float64, n)
	for i, c := range candidates {
		querySim[i] = cosine(query, c)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, n)
	// maxSelSim[i] tracks the redundancy term incrementally: the highest
	// similarity between candidate i and any already-selected candidate.
	maxSelSim := make([]float64, n)
	for i := range maxSelSim {
		maxSelSim[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best := -1
		var bestScore float64
		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			score := querySim[i]
			if len(selected) > 0 {
				score = lambda*querySim[i] - (1-lambda)*maxSelSim[i]
			}
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}

		picked[best] = true
		selected = append(selected, best)

		for i := 0; i < n; i++ {
			if picked[i] {
				continue
			}
			if sim := cosine(candidates[best], candidates[i]); sim > maxSelSim[i] {
				maxSelSim[i] = sim
			}
		}
	}

	return selected
}
