package sighting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/detection"
)

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	s, r := Build(7, nil, nil, nil, nil, "", "")

	assert.Equal(t, uint(7), s.UserID)
	assert.Equal(t, "Unknown", s.Species)
	assert.Zero(t, s.Confidence)
	assert.Equal(t, condition.LabelUnknown, s.Condition)
	assert.Equal(t, datastore.SourceImage, s.SourceKind)
	assert.Equal(t, 1, s.AnimalCount)
	assert.Equal(t, "medium", s.UrgencyLevel)
	assert.Nil(t, s.Latitude)

	assert.Equal(t, "Image Sighting: Unknown", r.Title)
	assert.Equal(t, datastore.StatusPending, r.Status)
	assert.Equal(t, "medium", r.Urgency)
	assert.Empty(t, r.EvidenceImages)
}

func TestBuild_EnrichmentCopiedVerbatim(t *testing.T) {
	t.Parallel()

	det := &detection.Aggregated{
		Label:      "Red Fox",
		Confidence: 0.87,
		Enrichment: map[string]string{
			"conservation_status": "Least Concern",
			"habitat":             "Forest",
			"lifespan":            "5 years",
			"population":          "abundant",
			"character_traits":    "cunning, nocturnal",
			"endangered":          "false",
		},
	}
	cond := &condition.Result{Label: condition.LabelHealthy, Confidence: 91.5}

	s, r := Build(1, det, cond, &Location{Latitude: 61.5, Longitude: 23.8}, nil, "image", "fox.jpg")

	assert.Equal(t, "Red Fox", s.Species)
	assert.InDelta(t, 0.87, s.Confidence, 1e-9)
	assert.Equal(t, "Healthy", s.Condition)
	assert.InDelta(t, 91.5, s.ConditionConfidence, 1e-9)
	require.NotNil(t, s.ConservationStatus)
	assert.Equal(t, "Least Concern", *s.ConservationStatus)
	require.NotNil(t, s.CharacterTraits)
	assert.Equal(t, "cunning, nocturnal", *s.CharacterTraits)
	assert.False(t, s.Endangered)
	require.NotNil(t, s.Latitude)
	assert.InDelta(t, 61.5, *s.Latitude, 1e-9)

	assert.Equal(t, []string{"fox.jpg"}, r.EvidenceImages)
	assert.Equal(t, "Image Sighting: Red Fox", r.Title)
}

func TestRecommendedCare_PureSelectionPolicy(t *testing.T) {
	t.Parallel()

	withCare := map[string]string{
		"care_injured":      "X",
		"care_malnourished": "Y",
		"care_general":      "G",
	}
	generalOnly := map[string]string{"care_general": "G"}
	empty := map[string]string{}

	tests := []struct {
		name       string
		condition  string
		enrichment map[string]string
		want       string
	}{
		{"injured with specific care", "injured", withCare, "X"},
		{"injured case-insensitive", "Injured", withCare, "X"},
		{"injured general fallback", "injured", generalOnly, "G"},
		{"injured fixed fallback", "injured", empty, FallbackCareInjured},
		{"injured nil lookup", "Injured", nil, FallbackCareInjured},
		{"malnourished with specific care", "Malnourished", withCare, "Y"},
		{"malnourished fixed fallback", "malnourished", nil, FallbackCareMalnourished},
		{"healthy general", "Healthy", generalOnly, "G"},
		{"healthy fixed fallback", "Healthy", nil, FallbackCareGeneral},
		{"unknown condition", "Unknown", empty, FallbackCareGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecommendedCare(tt.condition, tt.enrichment))
		})
	}
}

func TestBuild_DetailFallbackChains(t *testing.T) {
	t.Parallel()

	details := Details{
		"location":     "Riverbank near the mill", // fallback for specific_location
		"activity":     "foraging",                // fallback for behavior
		"animal_count": float64(3),
		"urgency":      "HIGH",
		"contact_info": "observer@example.org",
	}

	s, r := Build(1, nil, nil, nil, details, "video", "clip.mp4")

	assert.Equal(t, "Riverbank near the mill", s.SpecificLocation)
	assert.Equal(t, "foraging", s.Behavior)
	assert.Equal(t, 3, s.AnimalCount)
	assert.Equal(t, "high", s.UrgencyLevel)
	assert.Equal(t, "observer@example.org", s.Contact)
	assert.Equal(t, datastore.SourceVideo, s.SourceKind)
	assert.Equal(t, "high", r.Urgency)
	assert.Equal(t, "Video Sighting: Unknown", r.Title)
}

func TestBuild_SightedAtParsing(t *testing.T) {
	t.Parallel()

	s, _ := Build(1, nil, nil, nil, Details{"date_time": "2026-03-01T14:30:00Z"}, "", "")
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), s.SightedAt)

	// Unparseable input substitutes the current time instead of failing.
	before := time.Now()
	s, _ = Build(1, nil, nil, nil, Details{"date_time": "yesterday-ish"}, "", "")
	assert.False(t, s.SightedAt.Before(before))
}

func TestBuildDescription_ClauseAssembly(t *testing.T) {
	t.Parallel()

	det := &detection.Aggregated{
		Label:      "Barn Owl",
		Confidence: 0.9,
		Enrichment: map[string]string{"habitat": "Grassland"},
	}
	cond := &condition.Result{Label: condition.LabelInjured, Confidence: 75.0}
	details := Details{
		"specific_location": "Old barn",
		"animal_count":      float64(2),
		"behavior":          "not flying",
	}

	_, r := Build(1, det, cond, nil, details, "image", "owl.jpg")

	assert.Contains(t, r.Description, "Detected Barn Owl with 90.0% confidence. ")
	assert.Contains(t, r.Description, "Assessed condition: Injured (75.0% confidence). ")
	assert.Contains(t, r.Description, "Location: Old barn. ")
	assert.Contains(t, r.Description, "2 animals observed. ")
	assert.Contains(t, r.Description, "Observed behavior: not flying. ")
	assert.Contains(t, r.Description, "Typical habitat: Grassland. ")
	assert.Contains(t, r.Description, "Recommended care: "+FallbackCareInjured+". ")

	// Absent fields produce no clause.
	assert.NotContains(t, r.Description, "Estimated population")
	assert.NotContains(t, r.Description, "Conservation status")

	// Every clause ends with a period and a space.
	assert.True(t, strings.HasSuffix(r.Description, ". "))

	// Clause order is fixed: confidence before condition before location.
	confIdx := strings.Index(r.Description, "Detected Barn Owl")
	condIdx := strings.Index(r.Description, "Assessed condition")
	locIdx := strings.Index(r.Description, "Location:")
	assert.Less(t, confIdx, condIdx)
	assert.Less(t, condIdx, locIdx)
}

func TestBuild_SingleAnimalProducesNoCountClause(t *testing.T) {
	t.Parallel()

	_, r := Build(1, nil, nil, nil, Details{"animal_count": float64(1)}, "", "")
	assert.NotContains(t, r.Description, "animals observed")
}

func TestNormalizeSourceKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, datastore.SourceImage, normalizeSourceKind(""))
	assert.Equal(t, datastore.SourceImage, normalizeSourceKind("IMAGE"))
	assert.Equal(t, datastore.SourceVideo, normalizeSourceKind("video"))
	assert.Equal(t, datastore.SourceRealtime, normalizeSourceKind("real-time"))
	assert.Equal(t, datastore.SourceRealtime, normalizeSourceKind("frame"))
	assert.Equal(t, datastore.SourceManual, normalizeSourceKind("manual"))
	assert.Equal(t, datastore.SourceImage, normalizeSourceKind("something-else"))
}
