package sighting

import (
	"log/slog"
	"time"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/detection"
	"github.com/wildsight/wildsight-go/internal/logging"
)

// dedupWindow bounds how recent an existing sighting must be for a
// duplicate-species re-report to amend it instead of creating a new pair.
const dedupWindow = 24 * time.Hour

// Service persists built sighting/report pairs with best-effort
// duplicate-species deduplication.
type Service struct {
	ds     datastore.Interface
	logger *slog.Logger
}

// NewService creates a sighting persistence service.
func NewService(ds datastore.Interface) *Service {
	return &Service{
		ds:     ds,
		logger: logging.ForService("sighting"),
	}
}

// CreateOrAmend builds and persists a sighting and report. When the same
// user re-reports the same species within the dedup window, the most recent
// existing pair is updated in place, merging the newly supplied detail
// fields. This is best-effort dedup, not a uniqueness constraint: any
// lookup failure falls through to creating a new pair.
// Returns the persisted pair and whether an existing pair was amended.
func (svc *Service) CreateOrAmend(userID uint, det *detection.Aggregated, cond *condition.Result, loc *Location, details Details, detectionType, imageFile string) (*datastore.Sighting, *datastore.Report, bool, error) {
	built, report := Build(userID, det, cond, loc, details, detectionType, imageFile)

	if built.Species != "Unknown" {
		existing, err := svc.ds.LatestSightingForSpecies(userID, built.Species)
		if err != nil {
			svc.logger.Warn("dedup lookup failed, creating new sighting", "error", err)
		} else if existing != nil && existing.Report != nil && time.Since(existing.CreatedAt) < dedupWindow {
			return svc.amend(existing, details, report)
		}
	}

	if err := svc.ds.SaveSighting(built, report); err != nil {
		return nil, nil, false, err
	}
	return built, report, false, nil
}

// amend merges new details into an existing pair and refreshes the report
// description.
func (svc *Service) amend(existing *datastore.Sighting, details Details, fresh *datastore.Report) (*datastore.Sighting, *datastore.Report, bool, error) {
	MergeDetails(existing, details)

	report := existing.Report
	report.Description = buildDescription(existing)
	report.Urgency = existing.UrgencyLevel
	if len(fresh.EvidenceImages) > 0 {
		report.EvidenceImages = append(report.EvidenceImages, fresh.EvidenceImages...)
	}

	if err := svc.ds.UpdateSighting(existing, report); err != nil {
		return nil, nil, false, err
	}

	svc.logger.Debug("amended existing sighting",
		"sighting_id", existing.ID,
		"species", existing.Species)
	return existing, report, true, nil
}
