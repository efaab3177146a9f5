package sighting

import (
	"fmt"
	"strings"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/datastore"
)

// buildReport derives the Report from a fully populated sighting.
func buildReport(s *datastore.Sighting, detectionType string) *datastore.Report {
	report := &datastore.Report{
		UserID:      s.UserID,
		Title:       buildTitle(s.Species, detectionType),
		Description: buildDescription(s),
		Urgency:     s.UrgencyLevel,
		Status:      datastore.StatusPending,
	}
	if report.Urgency == "" {
		report.Urgency = "medium"
	}
	if s.ImageFile != "" {
		report.EvidenceImages = []string{s.ImageFile}
	} else {
		report.EvidenceImages = []string{}
	}
	return report
}

// buildTitle renders "{DetectionType} Sighting: {species}".
func buildTitle(species, detectionType string) string {
	kind := normalizeSourceKind(detectionType)
	return fmt.Sprintf("%s Sighting: %s", titleCase(kind), species)
}

// buildDescription assembles the narrative from a fixed ordered sequence of
// optional clauses. Only present fields produce a clause; every clause ends
// with a period and a space.
func buildDescription(s *datastore.Sighting) string {
	var b strings.Builder

	clause := func(format string, args ...any) {
		b.WriteString(fmt.Sprintf(format, args...))
		b.WriteString(". ")
	}

	if s.Confidence > 0 {
		clause("Detected %s with %.1f%% confidence", s.Species, s.Confidence*100)
	} else {
		clause("Reported sighting of %s", s.Species)
	}
	if s.Condition != "" && s.Condition != condition.LabelUnknown {
		clause("Assessed condition: %s (%.1f%% confidence)", s.Condition, s.ConditionConfidence)
	}
	if s.SpecificLocation != "" {
		clause("Location: %s", s.SpecificLocation)
	}
	if !s.SightedAt.IsZero() {
		clause("Sighted on %s", s.SightedAt.Format("2006-01-02 15:04"))
	}
	if s.AnimalCount > 1 {
		clause("%d animals observed", s.AnimalCount)
	}
	if s.Behavior != "" {
		clause("Observed behavior: %s", s.Behavior)
	}
	if s.Notes != "" {
		clause("Observer notes: %s", s.Notes)
	}
	if s.ConservationStatus != nil {
		clause("Conservation status: %s", *s.ConservationStatus)
	}
	if s.Habitat != nil {
		clause("Typical habitat: %s", *s.Habitat)
	}
	if s.Lifespan != nil {
		clause("Lifespan: %s", *s.Lifespan)
	}
	if s.Population != nil {
		clause("Estimated population: %s", *s.Population)
	}
	if s.RecommendedCare != nil {
		clause("Recommended care: %s", *s.RecommendedCare)
	}
	if s.CharacterTraits != nil {
		clause("Character traits: %s", *s.CharacterTraits)
	}

	return b.String()
}

// titleCase uppercases the first letter of each underscore- or
// space-separated word.
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
