// model.go: relational entities for sightings, reports and the admin
// review workflow.
package datastore

import "time"

// Report status values. Any status may transition to any other through an
// explicit admin action.
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusResolved    = "resolved"
	StatusDismissed   = "dismissed"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Sighting source kinds.
const (
	SourceImage    = "image"
	SourceVideo    = "video"
	SourceRealtime = "realtime"
	SourceManual   = "manual"
)

// User is an authentication principal. Password hashing happens outside the
// datastore; only the hash is stored.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string
	Role         string `gorm:"size:16;default:user"`
	Active       bool   `gorm:"default:true"`
	Verified     bool   `gorm:"default:false"`
	VerifyToken  string `gorm:"size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sighting is one detected-and-classified animal occurrence. Enrichment
// fields are pointers: absent reference data stays NULL and survives
// serialization round-trips as null rather than empty strings.
type Sighting struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"index;not null"`

	Species             string  `gorm:"index;size:128"`
	Confidence          float64 // detection confidence, 0-1
	Condition           string  `gorm:"size:32"`
	ConditionConfidence float64 // condition confidence, 0-100

	Latitude  *float64
	Longitude *float64

	ImageFile  string `gorm:"size:255"`
	SourceKind string `gorm:"size:16;default:image"` // image, video, realtime, manual

	// Enrichment, sourced from the reference table at detection time.
	ConservationStatus *string `gorm:"size:64"`
	Habitat            *string `gorm:"size:255"`
	Lifespan           *string `gorm:"size:64"`
	Population         *string `gorm:"size:64"`
	RecommendedCare    *string `gorm:"type:text"`
	CharacterTraits    *string `gorm:"type:text"`
	Endangered         bool    `gorm:"default:false"`

	// Free-form sighting details supplied by the observer.
	SightedAt        time.Time
	SpecificLocation string `gorm:"size:255"`
	AnimalCount      int    `gorm:"default:1"`
	Behavior         string `gorm:"type:text"`
	Notes            string `gorm:"type:text"`
	Contact          string `gorm:"size:128"`
	UrgencyLevel     string `gorm:"size:16;default:medium"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Report *Report `gorm:"foreignKey:SightingID;constraint:OnDelete:CASCADE"`
}

// Report is a reviewable case wrapping zero-or-one Sighting. A manual report
// has no backing sighting. Exactly one report may reference a sighting.
type Report struct {
	ID         uint  `gorm:"primaryKey"`
	UserID     uint  `gorm:"index;not null"`
	SightingID *uint `gorm:"uniqueIndex"`

	Title       string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Urgency     string `gorm:"size:16;default:medium"`
	Status      string `gorm:"size:16;default:pending;index"`
	AdminNotes  string `gorm:"type:text"`

	// EvidenceImages holds stored filenames, at most one element today.
	EvidenceImages []string `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time

	History       []AdminHistory     `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	Notifications []UserNotification `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// AdminHistory is an append-only audit trail entry for a report. Rows are
// never mutated or deleted except through cascade from report deletion.
type AdminHistory struct {
	ID       uint `gorm:"primaryKey"`
	ReportID uint `gorm:"index;not null"`

	AdminID        uint
	AdminName      string `gorm:"size:128"`
	Action         string `gorm:"size:64"`
	Notes          string `gorm:"type:text"`
	PreviousStatus string `gorm:"size:16"`
	NewStatus      string `gorm:"size:16"`

	CreatedAt time.Time `gorm:"index"`
}

// ReportSnapshot is the denormalized point-in-time copy of sighting data
// embedded in a notification. Later sighting edits must not retroactively
// alter historical notifications.
type ReportSnapshot struct {
	Species             string  `json:"species,omitempty"`
	Confidence          float64 `json:"confidence,omitempty"`
	Condition           string  `json:"condition,omitempty"`
	ConditionConfidence float64 `json:"condition_confidence,omitempty"`
	ConservationStatus  *string `json:"conservation_status"`
	Habitat             *string `json:"habitat"`
	Lifespan            *string `json:"lifespan"`
	Population          *string `json:"population"`
	RecommendedCare     *string `json:"recommended_care"`
	Status              string  `json:"status,omitempty"`
}

// UserNotification is a message delivered to the report's owning user about
// a status or admin update. Mutated only to flip the read flag.
type UserNotification struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"index;not null"`
	ReportID uint `gorm:"index;not null"`

	Title   string `gorm:"size:255"`
	Message string `gorm:"type:text"`
	Type    string `gorm:"size:32"`

	Read       bool   `gorm:"default:false;index"`
	EmailSent  bool   `gorm:"default:false"`
	EmailError string `gorm:"size:255"`

	Snapshot *ReportSnapshot `gorm:"serializer:json"`

	CreatedAt time.Time `gorm:"index"`
}
