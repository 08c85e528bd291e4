package mergequeue

import "sort"

// OrderPRs implements spec.md §4.10's greedy ordering: at each step, choose
// the remaining PR whose total predicted-conflict score against already-
// ordered PRs (weight ×2) plus the other remaining PRs (weight ×1) is
// minimal, ties broken by PR id.
func OrderPRs(prIDs []string, analyses map[string]*PRAnalysis, weights Weights) []string {
	remaining := append([]string(nil), prIDs...)
	sort.Strings(remaining)

	var ordered []string
	for len(remaining) > 0 {
		bestIdx := -1
		var bestScore float64
		for i, candidate := range remaining {
			score := scoreCandidate(candidate, ordered, remaining, analyses, weights)
			if bestIdx == -1 || score < bestScore || (score == bestScore && candidate < remaining[bestIdx]) {
				bestIdx = i
				bestScore = score
			}
		}
		ordered = append(ordered, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return ordered
}

func scoreCandidate(candidate string, ordered, remaining []string, analyses map[string]*PRAnalysis, weights Weights) float64 {
	var score float64
	a := analyses[candidate]
	for _, o := range ordered {
		score += PredictConflict(a, analyses[o], weights).Probability * 2
	}
	for _, r := range remaining {
		if r == candidate {
			continue
		}
		score += PredictConflict(a, analyses[r], weights).Probability * 1
	}
	return score
}
