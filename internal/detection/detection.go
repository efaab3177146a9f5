// Package detection provides the domain models for wildlife detection
// processing and the aggregation logic that reduces raw per-model output to
// one enriched entry per species.
//
// The aggregator is deliberately independent of the inference and reference
// data implementations: models produce RawDetection values, and enrichment
// is supplied through the Enricher interface.
package detection

// Box is a bounding box in normalized [0,1] image coordinates,
// ordered as ymin, xmin, ymax, xmax.
type Box [4]float64

// RawDetection is one (label, confidence, box) output from an
// object-detection model.
type RawDetection struct {
	Label      string
	Confidence float64
	Box        Box
}

// Aggregated is the retained best detection for a species label, with
// reference enrichment attached.
type Aggregated struct {
	Label      string
	Confidence float64
	Box        Box
	// Enrichment holds reference-data fields for the label, nil when the
	// species is not in the reference table.
	Enrichment map[string]string
}

// Enricher resolves reference enrichment for a species label. A nil result
// means no data; implementations must not return errors into the caller.
type Enricher interface {
	Lookup(speciesLabel string) map[string]string
}

// noEnrichment is used when no reference table is available.
type noEnrichment struct{}

func (noEnrichment) Lookup(string) map[string]string { return nil }

// NoEnrichment is an Enricher that resolves nothing.
var NoEnrichment Enricher = noEnrichment{}

// Aggregate reduces a raw detection sequence to one entry per distinct
// label, keeping the entry with the strictly greatest confidence (ties keep
// the first seen). Output preserves the insertion order of each label's
// first occurrence. Enrichment is recomputed only when the retained entry
// changes, bounding lookups to at most one per label transition.
//
// Single pass, side-effect-free on the input. Empty input yields an empty
// (non-nil) slice.
func Aggregate(raw []RawDetection, enricher Enricher) []Aggregated {
	if enricher == nil {
		enricher = NoEnrichment
	}

	result := make([]Aggregated, 0, len(raw))
	index := make(map[string]int, len(raw))

	for i := range raw {
		d := &raw[i]
		at, seen := index[d.Label]
		if !seen {
			index[d.Label] = len(result)
			result = append(result, Aggregated{
				Label:      d.Label,
				Confidence: d.Confidence,
				Box:        d.Box,
				Enrichment: enricher.Lookup(d.Label),
			})
			continue
		}
		if d.Confidence > result[at].Confidence {
			result[at].Confidence = d.Confidence
			result[at].Box = d.Box
			result[at].Enrichment = enricher.Lookup(d.Label)
		}
	}

	return result
}

// Best returns the entry with the highest confidence from an aggregated
// slice, or nil when the slice is empty. Ties keep the earlier entry.
func Best(aggregated []Aggregated) *Aggregated {
	var best *Aggregated
	for i := range aggregated {
		if best == nil || aggregated[i].Confidence > best.Confidence {
			best = &aggregated[i]
		}
	}
	return best
}
