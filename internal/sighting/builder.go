// Package sighting turns aggregated detection output, a condition result
// and observer-supplied details into persistent Sighting and Report
// entities, including the generated narrative description.
package sighting

import (
	"fmt"
	"strings"
	"time"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/detection"
)

// Fixed recommended-care fallbacks used when the reference table has no
// guidance for the species.
const (
	FallbackCareInjured      = "Provide medical attention and safe shelter"
	FallbackCareMalnourished = "Provide proper nutrition and hydration"
	FallbackCareGeneral      = "Monitor condition and provide appropriate habitat"
)

// Location is an optional geolocation attached to a sighting.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Details is the free-form sighting details payload. Clients send several
// shapes; values are read with per-field fallback chains.
type Details map[string]any

// Build constructs a Sighting and its Report from one detection outcome.
// Every input except userID is optional: absent detection data degrades to
// the Unknown sentinels rather than failing.
func Build(userID uint, det *detection.Aggregated, cond *condition.Result, loc *Location, details Details, detectionType, imageFile string) (*datastore.Sighting, *datastore.Report) {
	s := &datastore.Sighting{
		UserID:      userID,
		Species:     "Unknown",
		SourceKind:  normalizeSourceKind(detectionType),
		ImageFile:   imageFile,
		AnimalCount: 1,
	}

	if det != nil {
		if det.Label != "" {
			s.Species = det.Label
		}
		s.Confidence = det.Confidence
	}

	s.Condition = condition.LabelUnknown
	if cond != nil && cond.Label != "" {
		s.Condition = cond.Label
		s.ConditionConfidence = cond.Confidence
	}

	if loc != nil {
		lat, lng := loc.Latitude, loc.Longitude
		s.Latitude = &lat
		s.Longitude = &lng
	}

	var enrichment map[string]string
	if det != nil {
		enrichment = det.Enrichment
	}
	applyEnrichment(s, enrichment)
	s.RecommendedCare = strptr(RecommendedCare(s.Condition, enrichment))

	applyDetails(s, details)

	report := buildReport(s, detectionType)
	return s, report
}

// applyEnrichment copies reference fields onto the sighting, each
// independently optional.
func applyEnrichment(s *datastore.Sighting, enrichment map[string]string) {
	if enrichment == nil {
		return
	}
	if v, ok := enrichment["conservation_status"]; ok {
		s.ConservationStatus = strptr(v)
	}
	if v, ok := enrichment["habitat"]; ok {
		s.Habitat = strptr(v)
	}
	if v, ok := enrichment["lifespan"]; ok {
		s.Lifespan = strptr(v)
	}
	if v, ok := enrichment["population"]; ok {
		s.Population = strptr(v)
	}
	if v, ok := enrichment["character_traits"]; ok {
		s.CharacterTraits = strptr(v)
	}
	switch strings.ToLower(enrichment["endangered"]) {
	case "true", "yes", "1":
		s.Endangered = true
	}
}

// RecommendedCare selects care guidance as a pure function of the condition
// label and the available reference data.
func RecommendedCare(conditionLabel string, enrichment map[string]string) string {
	general, hasGeneral := enrichment["care_general"]

	switch strings.ToLower(conditionLabel) {
	case "injured":
		if v, ok := enrichment["care_injured"]; ok {
			return v
		}
		if hasGeneral {
			return general
		}
		return FallbackCareInjured
	case "malnourished":
		if v, ok := enrichment["care_malnourished"]; ok {
			return v
		}
		if hasGeneral {
			return general
		}
		return FallbackCareMalnourished
	default:
		if hasGeneral {
			return general
		}
		return FallbackCareGeneral
	}
}

// applyDetails reads free-form detail fields with per-field fallback
// chains, tolerating the different shapes clients send.
func applyDetails(s *datastore.Sighting, details Details) {
	s.SightedAt = parseSightedAt(details.str("date_time", "datetime", "date"))
	s.SpecificLocation = details.str("specific_location", "location")
	s.Behavior = details.str("behavior", "activity")
	s.Notes = details.str("notes", "description", "observer_notes")
	s.Contact = details.str("contact", "contact_info", "phone")

	if count := details.num("animal_count", "count"); count >= 1 {
		s.AnimalCount = int(count)
	}

	s.UrgencyLevel = "medium"
	if urgency := strings.ToLower(details.str("urgency_level", "urgency")); urgency != "" {
		switch urgency {
		case "low", "medium", "high", "critical":
			s.UrgencyLevel = urgency
		}
	}
}

// MergeDetails folds newly submitted detail fields into an existing
// sighting, leaving unset fields alone. Used by the duplicate-species
// amend path.
func MergeDetails(s *datastore.Sighting, details Details) {
	if v := details.str("specific_location", "location"); v != "" {
		s.SpecificLocation = v
	}
	if v := details.str("behavior", "activity"); v != "" {
		s.Behavior = v
	}
	if v := details.str("notes", "description", "observer_notes"); v != "" {
		s.Notes = v
	}
	if v := details.str("contact", "contact_info", "phone"); v != "" {
		s.Contact = v
	}
	if count := details.num("animal_count", "count"); count >= 1 {
		s.AnimalCount = int(count)
	}
	if v := strings.ToLower(details.str("urgency_level", "urgency")); v != "" {
		switch v {
		case "low", "medium", "high", "critical":
			s.UrgencyLevel = v
		}
	}
	if v := details.str("date_time", "datetime", "date"); v != "" {
		s.SightedAt = parseSightedAt(v)
	}
}

// str returns the first present non-empty string among the keys.
func (d Details) str(keys ...string) string {
	for _, key := range keys {
		if v, ok := d[key]; ok {
			if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

// num returns the first present numeric value among the keys. JSON numbers
// arrive as float64; numeric strings are tolerated.
func (d Details) num(keys ...string) float64 {
	for _, key := range keys {
		v, ok := d[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case string:
			var parsed float64
			if _, err := fmt.Sscanf(strings.TrimSpace(n), "%f", &parsed); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// sightedAtLayouts are the accepted timestamp shapes, tried in order.
var sightedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseSightedAt converts an ISO-8601-ish timestamp string. Any parse
// failure substitutes the current time rather than rejecting the request.
func parseSightedAt(value string) time.Time {
	if value != "" {
		for _, layout := range sightedAtLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts
			}
		}
	}
	return time.Now()
}

// normalizeSourceKind maps a client-supplied detection type onto the known
// source kinds, defaulting to image.
func normalizeSourceKind(detectionType string) string {
	switch strings.ToLower(strings.TrimSpace(detectionType)) {
	case datastore.SourceVideo:
		return datastore.SourceVideo
	case datastore.SourceRealtime, "real-time", "frame":
		return datastore.SourceRealtime
	case datastore.SourceManual:
		return datastore.SourceManual
	default:
		return datastore.SourceImage
	}
}

func strptr(s string) *string { return &s }
