package retrieval

import (
	"math"
	"sort"
)

type RankParams struct {
	SemanticWeight      float64
	LexicalWeight       float64
	SimilarityThreshold float64
	DiversityCap        int
	TopK                int
}

// Rank blends semantic and lexical scores, drops candidates under the
// threshold, and selects at most TopK with no source document contributing
// more than DiversityCap entries. Capped-out candidates fill the remaining
// slots only when the diverse pass comes up short of TopK. The output is
// ordered by descending combined score; an empty output is a valid result.
func Rank(candidates []Candidate, p RankParams) []Candidate {
	if p.TopK <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.CombinedScore = p.SemanticWeight*c.SemanticScore + p.LexicalWeight*c.LexicalScore
		if math.IsNaN(c.CombinedScore) || c.CombinedScore < p.SimilarityThreshold {
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return rankBefore(scored[i], scored[j])
	})

	perSourceCap := p.DiversityCap
	if perSourceCap <= 0 {
		perSourceCap = p.TopK
	}

	admitted := make([]int, 0, p.TopK)
	var skipped []int
	perSource := make(map[string]int)
	for i, c := range scored {
		if len(admitted) == p.TopK {
			break
		}
		source := sourceKey(c.Chunk)
		if perSource[source] >= perSourceCap {
			skipped = append(skipped, i)
			continue
		}
		perSource[source]++
		admitted = append(admitted, i)
	}

	for _, i := range skipped {
		if len(admitted) == p.TopK {
			break
		}
		admitted = append(admitted, i)
	}

	sort.Ints(admitted)
	out := make([]Candidate, len(admitted))
	for k, i := range admitted {
		out[k] = scored[i]
	}
	return out
}

func rankBefore(a, b Candidate) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.SemanticScore != b.SemanticScore {
		return a.SemanticScore > b.SemanticScore
	}
	return a.Position < b.Position
}

// Chunks without a source document count as their own source.
func sourceKey(c Chunk) string {
	if c.SourceID != "" {
		return c.SourceID
	}
	return "chunk:" + c.ID
}
