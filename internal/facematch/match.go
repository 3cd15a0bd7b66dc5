package facematch

import "math"

// PersonSimilarity returns the best dot product between query and any of the
// person's vectors. Vectors of a different dimension never match.
func PersonSimilarity(query []float32, p Person) float64 {
	best := math.Inf(-1)
	for _, v := range p.Vectors {
		sim, err := Dot(query, v)
		if err != nil {
			continue
		}
		if sim > best {
			best = sim
		}
	}
	return best
}

// Match finds the known person most similar to query.
//
// People are scanned in order and only a strictly greater score replaces the
// current best, so the first person wins an exact tie. The result is Matched
// only when the best similarity is strictly above threshold.
func Match(query []float32, people []Person, threshold float64) Result {
	result := Result{Similarity: math.Inf(-1)}
	for _, p := range people {
		sim := PersonSimilarity(query, p)
		if sim > result.Similarity {
			result.Name = p.Name
			result.Similarity = sim
		}
	}
	if math.IsInf(result.Similarity, -1) {
		return Result{}
	}
	result.Matched = result.Similarity > threshold
	return result
}
