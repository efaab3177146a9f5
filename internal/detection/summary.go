package detection

import "math"

// Summary carries response metadata about one detection pass, mirroring what
// clients display alongside the per-species results.
type Summary struct {
	TotalDetections   int     `json:"total_detections"`
	DistinctSpecies   int     `json:"distinct_species"`
	HighestConfidence float64 `json:"highest_confidence"`
	AverageConfidence float64 `json:"average_confidence"`
	EndangeredCount   int     `json:"endangered_count"`
}

// EndangeredFlagger reports whether a species label is considered
// endangered by the reference dataset.
type EndangeredFlagger interface {
	IsEndangered(speciesLabel string) bool
}

// Summarize computes summary statistics over raw detections and their
// aggregated form. flagger may be nil when no reference data is loaded.
func Summarize(raw []RawDetection, aggregated []Aggregated, flagger EndangeredFlagger) Summary {
	s := Summary{
		TotalDetections: len(raw),
		DistinctSpecies: len(aggregated),
	}

	var sum float64
	for i := range raw {
		sum += raw[i].Confidence
		if raw[i].Confidence > s.HighestConfidence {
			s.HighestConfidence = raw[i].Confidence
		}
	}
	if len(raw) > 0 {
		s.AverageConfidence = round4(sum / float64(len(raw)))
	}

	if flagger != nil {
		for i := range aggregated {
			if flagger.IsEndangered(aggregated[i].Label) {
				s.EndangeredCount++
			}
		}
	}

	return s
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
