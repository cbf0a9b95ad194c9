// Package fusion merges ranked candidate lists.
package fusion

import "sort"

// RRFConstant is the Reciprocal Rank Fusion constant (Cormack et al. 2009).
const RRFConstant = 60

// Fused is one merged candidate.
type Fused[T any] struct {
	Item  T
	Score float64
	// Ranks holds the 1-based rank per leg, 0 when the candidate is absent from that leg.
	Ranks []int
}

// RRF merges ranked legs with Reciprocal Rank Fusion:
// score(d) = sum over legs of 1/(rank + RRFConstant), 1-based rank.
//
// Output is ordered by score descending. Ties go to the best rank held in any
// leg, then to the candidate present in more legs, then to the smaller id, so
// the ranking does not depend on leg order. The item kept for a candidate is
// its first occurrence in leg order. topK <= 0 returns every candidate.
func RRF[T any](topK int, id func(T) string, legs ...[]T) []Fused[T] {
	index := make(map[string]int)
	var merged []Fused[T]
	var ids []string

	for leg, items := range legs {
		for pos, item := range items {
			key := id(item)
			i, seen := index[key]
			if !seen {
				i = len(merged)
				index[key] = i
				merged = append(merged, Fused[T]{Item: item, Ranks: make([]int, len(legs))})
				ids = append(ids, key)
			}
			if merged[i].Ranks[leg] != 0 {
				// duplicate within a leg keeps its best rank
				continue
			}
			rank := pos + 1
			merged[i].Ranks[leg] = rank
			merged[i].Score += 1.0 / float64(rank+RRFConstant)
		}
	}

	order := make([]int, len(merged))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := merged[order[a]], merged[order[b]]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		xb, xn := bestRank(x.Ranks)
		yb, yn := bestRank(y.Ranks)
		if xb != yb {
			return xb < yb
		}
		if xn != yn {
			return xn > yn
		}
		return ids[order[a]] < ids[order[b]]
	})

	n := len(order)
	if topK > 0 && n > topK {
		n = topK
	}
	out := make([]Fused[T], n)
	for i := 0; i < n; i++ {
		out[i] = merged[order[i]]
	}
	return out
}

// bestRank returns the smallest present rank and the number of legs holding
// the candidate.
func bestRank(ranks []int) (best, present int) {
	for _, r := range ranks {
		if r == 0 {
			continue
		}
		present++
		if best == 0 || r < best {
			best = r
		}
	}
	return best, present
}
