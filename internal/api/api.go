// Package api implements the HTTP surface: detection uploads, report
// creation, the admin review endpoints and the read-side listings.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/logging"
	"github.com/wildsight/wildsight-go/internal/runtime"
	"github.com/wildsight/wildsight-go/internal/sighting"
	"github.com/wildsight/wildsight-go/internal/workflow"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	rt        *runtime.Context
	sightings *sighting.Service
	engine    *workflow.Engine

	validate  *validator.Validate
	listCache *cache.Cache
	logger    *slog.Logger
}

// New creates the API controller and registers all routes.
func New(rt *runtime.Context) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	c := &Controller{
		Echo:      e,
		rt:        rt,
		sightings: sighting.NewService(rt.DS),
		engine:    workflow.NewEngine(rt.DS, rt.Mailer),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		listCache: cache.New(30*time.Second, time.Minute),
		logger:    logging.ForService("api"),
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	g := c.Group

	// Detection pipeline. Analysis only, nothing persists here.
	g.POST("/detect", c.handleDetect)
	g.POST("/detect-video", c.handleDetectVideo)
	g.POST("/detect-frame", c.handleDetectFrame)

	// Sighting/report persistence.
	g.POST("/reports", c.handleCreateReport)
	g.POST("/report-sighting", c.handleCreateReport) // legacy alias
	g.GET("/reports/:id", c.handleGetReport)
	g.PATCH("/reports/:id", c.handleUpdateReport)
	g.POST("/reports/:id/notify", c.handleNotifyReport)
	g.DELETE("/sightings/:id", c.handleDeleteSighting)

	// Read side.
	g.GET("/users/:id/reports", c.handleUserReports)
	g.GET("/sightings", c.handleListSightings)
	g.GET("/admin/notifications", c.handleAdminNotifications)
	g.POST("/notifications/:id/read", c.handleMarkNotificationRead)

	g.GET("/health", c.handleHealth)
	c.Echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(c.rt.Registry, promhttp.HandlerOpts{})))
}

// Start runs the HTTP server until it fails or is shut down.
func (c *Controller) Start(addr string) error {
	return c.Echo.Start(addr)
}

// Shutdown flushes caches; the echo server is closed by the caller.
func (c *Controller) Shutdown() {
	c.listCache.Flush()
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an API error response with a correlation ID for
// log cross-referencing.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// HandleError constructs and returns an appropriate error response,
// deriving the status code from the error's category when one is present.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = statusFromError(err)
	}
	resp := NewErrorResponse(err, message, code)

	c.logger.Error("request failed",
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"status", code,
		"correlation_id", resp.CorrelationID,
		"error", err)

	return ctx.JSON(code, resp)
}

// statusFromError maps the error taxonomy onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.HasCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	case errors.HasCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.HasCategory(err, errors.CategoryConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bindAndValidate decodes the JSON body and runs struct validation.
func (c *Controller) bindAndValidate(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "bind_request").
			Build()
	}
	if err := c.validate.Struct(req); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "validate_request").
			Build()
	}
	return nil
}

// invalidateListCaches drops cached listings after any write.
func (c *Controller) invalidateListCaches() {
	c.listCache.Flush()
}

func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// reportView is the serialized form of a report.
type reportView struct {
	ID             uint      `json:"id"`
	UserID         uint      `json:"user_id"`
	SightingID     *uint     `json:"sighting_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Urgency        string    `json:"urgency"`
	Status         string    `json:"status"`
	AdminNotes     string    `json:"admin_notes,omitempty"`
	EvidenceImages []string  `json:"evidence_images"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// sightingView is the serialized form of a sighting. Enrichment fields are
// pointers so absent reference data serializes as null.
type sightingView struct {
	ID                  uint     `json:"id"`
	UserID              uint     `json:"user_id"`
	Species             string   `json:"species"`
	Confidence          float64  `json:"confidence"`
	Condition           string   `json:"condition"`
	ConditionConfidence float64  `json:"condition_confidence"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	ImageFile           string   `json:"image_file,omitempty"`
	SourceKind          string   `json:"source_kind"`

	ConservationStatus *string `json:"conservation_status"`
	Habitat            *string `json:"habitat"`
	Lifespan           *string `json:"lifespan"`
	Population         *string `json:"population"`
	RecommendedCare    *string `json:"recommended_care"`
	CharacterTraits    *string `json:"character_traits"`
	Endangered         bool    `json:"endangered"`

	SightedAt        time.Time `json:"sighted_at"`
	SpecificLocation string    `json:"specific_location,omitempty"`
	AnimalCount      int       `json:"animal_count"`
	Behavior         string    `json:"behavior,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	UrgencyLevel     string    `json:"urgency_level"`
	CreatedAt        time.Time `json:"created_at"`

	Report *reportView `json:"report,omitempty"`
}

func toReportView(r *datastore.Report) *reportView {
	if r == nil {
		return nil
	}
	evidence := r.EvidenceImages
	if evidence == nil {
		evidence = []string{}
	}
	return &reportView{
		ID:             r.ID,
		UserID:         r.UserID,
		SightingID:     r.SightingID,
		Title:          r.Title,
		Description:    r.Description,
		Urgency:        r.Urgency,
		Status:         r.Status,
		AdminNotes:     r.AdminNotes,
		EvidenceImages: evidence,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toSightingView(s *datastore.Sighting) *sightingView {
	if s == nil {
		return nil
	}
	return &sightingView{
		ID:                  s.ID,
		UserID:              s.UserID,
		Species:             s.Species,
		Confidence:          s.Confidence,
		Condition:           s.Condition,
		ConditionConfidence: s.ConditionConfidence,
		Latitude:            s.Latitude,
		Longitude:           s.Longitude,
		ImageFile:           s.ImageFile,
		SourceKind:          s.SourceKind,
		ConservationStatus:  s.ConservationStatus,
		Habitat:             s.Habitat,
		Lifespan:            s.Lifespan,
		Population:          s.Population,
		RecommendedCare:     s.RecommendedCare,
		CharacterTraits:     s.CharacterTraits,
		Endangered:          s.Endangered,
		SightedAt:           s.SightedAt,
		SpecificLocation:    s.SpecificLocation,
		AnimalCount:         s.AnimalCount,
		Behavior:            s.Behavior,
		Notes:               s.Notes,
		UrgencyLevel:        s.UrgencyLevel,
		CreatedAt:           s.CreatedAt,
		Report:              toReportView(s.Report),
	}
}
