package mergequeue

import "sort"

// Weights is the operator-tunable table behind conflict prediction (spec.md
// §9: "empirically tuned" weights the original platform exposes as an
// editable table). Exposed as a plain struct rather than hidden constants so
// callers can retune without a code change.
type Weights struct {
	FileOverlap      float64
	ConflictArea     float64
	DirectoryOverlap float64
}

// DefaultWeights carries the example empirical values spec.md §9 gives for
// this table (20 for direct overlap, 30 for conflict-area overlap, 2 for
// directory overlap, normalized by /100) — called out there as tunable on
// real corpora rather than fixed, hence Weights being a parameter rather
// than a package constant.
var DefaultWeights = Weights{
	FileOverlap:      20,
	ConflictArea:     30,
	DirectoryOverlap: 2,
}

// Resolution is the closed enumeration spec.md §4.10 defines for a
// predicted conflict's suggested handling.
type Resolution int

const (
	PR1First Resolution = iota
	PR2First
	ManualRequired
)

// Prediction is the result of comparing two PRs' analyses (spec.md §4.10:
// "{probability∈[0,1], conflicting_files, resolution}").
type Prediction struct {
	Probability      float64
	ConflictingFiles []string
	Resolution       Resolution
}

// PredictConflict scores the likelihood pr1 and pr2 conflict if merged in
// either order, from direct file overlap, shared conflict-area files, and
// directory overlap.
func PredictConflict(pr1, pr2 *PRAnalysis, weights Weights) Prediction {
	pr1Files := filePaths(pr1)
	pr2Files := filePaths(pr2)

	var conflicting []string
	var weightedSum float64
	for p := range pr1Files {
		if !pr2Files[p] {
			continue
		}
		conflicting = append(conflicting, p)
		if pr1.ConflictAreas[p] || pr2.ConflictAreas[p] {
			weightedSum += weights.ConflictArea
		} else {
			weightedSum += weights.FileOverlap
		}
	}
	sort.Strings(conflicting)

	for d := range pr1.Directories {
		if pr2.Directories[d] {
			weightedSum += weights.DirectoryOverlap
		}
	}

	probability := weightedSum / 100
	if probability > 1 {
		probability = 1
	}
	if probability < 0 {
		probability = 0
	}

	resolution := PR1First
	switch {
	case probability > 0.7:
		resolution = ManualRequired
	case pr2.Churn() < pr1.Churn():
		resolution = PR2First
	}

	return Prediction{Probability: probability, ConflictingFiles: conflicting, Resolution: resolution}
}

func filePaths(a *PRAnalysis) map[string]bool {
	out := make(map[string]bool, len(a.Files))
	for _, f := range a.Files {
		out[f.Path] = true
	}
	return out
}
