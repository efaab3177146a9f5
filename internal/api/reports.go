package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/detection"
	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/sighting"
	"github.com/wildsight/wildsight-go/internal/workflow"
)

// createReportRequest combines client-side detection output with the
// observer's sighting details. Detection and condition are optional: a
// manual report degrades to the Unknown sentinels.
type createReportRequest struct {
	UserID        uint               `json:"user_id" validate:"required"`
	Detection     *detectionInput    `json:"detection"`
	Condition     *conditionInput    `json:"condition"`
	Location      *sighting.Location `json:"location"`
	Details       sighting.Details   `json:"sighting_details"`
	DetectionType string             `json:"detection_type"`
	ImageFile     string             `json:"image_file"`
}

type detectionInput struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	Enrichment map[string]string `json:"enrichment"`
}

type conditionInput struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type createReportResponse struct {
	Sighting *sightingView `json:"sighting"`
	Report   *reportView   `json:"report"`
	Amended  bool          `json:"amended"`
}

// handleCreateReport persists a sighting and its report from submitted
// detection output.
func (c *Controller) handleCreateReport(ctx echo.Context) error {
	var req createReportRequest
	if err := c.bindAndValidate(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "invalid report payload", 0)
	}

	var det *detection.Aggregated
	if req.Detection != nil {
		enrichment := req.Detection.Enrichment
		if enrichment == nil && c.rt.RefData != nil {
			enrichment = c.rt.RefData.Lookup(req.Detection.Label)
		}
		det = &detection.Aggregated{
			Label:      req.Detection.Label,
			Confidence: req.Detection.Confidence,
			Enrichment: enrichment,
		}
	}

	var cond *condition.Result
	if req.Condition != nil {
		cond = &condition.Result{Label: req.Condition.Label, Confidence: req.Condition.Confidence}
	}

	s, r, amended, err := c.sightings.CreateOrAmend(
		req.UserID, det, cond, req.Location, req.Details, req.DetectionType, req.ImageFile)
	if err != nil {
		return c.HandleError(ctx, err, "failed to persist report", 0)
	}

	c.rt.Metrics.RecordReport(s.SourceKind)
	c.invalidateListCaches()

	status := http.StatusCreated
	if amended {
		status = http.StatusOK
	}
	return ctx.JSON(status, createReportResponse{
		Sighting: toSightingView(s),
		Report:   toReportView(r),
		Amended:  amended,
	})
}

// handleGetReport returns one report with its audit history.
func (c *Controller) handleGetReport(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid report id", 0)
	}

	report, err := c.rt.DS.GetReport(id)
	if err != nil {
		return c.HandleError(ctx, err, "report not found", 0)
	}
	return ctx.JSON(http.StatusOK, toReportView(&report))
}

// updateReportRequest mutates a report's status through the workflow
// engine.
type updateReportRequest struct {
	Status    string `json:"status" validate:"required"`
	AdminID   uint   `json:"admin_id"`
	AdminName string `json:"admin_name"`
	Notes     string `json:"notes"`
}

type updateReportResponse struct {
	Report              *reportView `json:"report"`
	HistoryRecorded     bool        `json:"history_recorded"`
	NotificationCreated bool        `json:"notification_created"`
}

// handleUpdateReport performs an admin status transition.
func (c *Controller) handleUpdateReport(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid report id", 0)
	}

	var req updateReportRequest
	if err := c.bindAndValidate(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "invalid status payload", 0)
	}

	var actor *workflow.Actor
	if req.AdminID != 0 || req.AdminName != "" {
		actor = &workflow.Actor{ID: req.AdminID, Name: req.AdminName}
	}

	outcome, err := c.engine.Transition(id, req.Status, actor, req.Notes)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidStatus) {
			return c.HandleError(ctx, err, "invalid report status", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "failed to update report", 0)
	}

	c.rt.Metrics.RecordTransition(outcome.Report.Status)
	if outcome.Notification != nil {
		c.rt.Metrics.RecordNotification(outcome.Notification.Type, outcome.Notification.EmailError != "")
	}
	c.invalidateListCaches()

	return ctx.JSON(http.StatusOK, updateReportResponse{
		Report:              toReportView(outcome.Report),
		HistoryRecorded:     outcome.History != nil,
		NotificationCreated: outcome.Notification != nil,
	})
}

// notifyRequest is a freeform admin message to a report's owner.
type notifyRequest struct {
	Title     string `json:"title"`
	Message   string `json:"message" validate:"required"`
	AdminID   uint   `json:"admin_id"`
	AdminName string `json:"admin_name"`
}

// handleNotifyReport records a freeform admin message and emails the
// report owner.
func (c *Controller) handleNotifyReport(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid report id", 0)
	}

	var req notifyRequest
	if err := c.bindAndValidate(ctx, &req); err != nil {
		return c.HandleError(ctx, err, "invalid notification payload", 0)
	}

	var actor *workflow.Actor
	if req.AdminID != 0 || req.AdminName != "" {
		actor = &workflow.Actor{ID: req.AdminID, Name: req.AdminName}
	}

	notification, err := c.engine.Notify(id, actor, req.Title, req.Message)
	if err != nil {
		return c.HandleError(ctx, err, "failed to send notification", 0)
	}

	c.rt.Metrics.RecordNotification(notification.Type, notification.EmailError != "")
	c.invalidateListCaches()

	return ctx.JSON(http.StatusCreated, notification)
}

// handleDeleteSighting removes a sighting and everything hanging off it.
func (c *Controller) handleDeleteSighting(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid sighting id", 0)
	}

	if err := c.rt.DS.DeleteSighting(id); err != nil {
		return c.HandleError(ctx, err, "failed to delete sighting", 0)
	}

	c.invalidateListCaches()
	return ctx.NoContent(http.StatusNoContent)
}

// handleUserReports lists one user's reports newest first.
func (c *Controller) handleUserReports(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid user id", 0)
	}

	reports, err := c.rt.DS.GetUserReports(id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list reports", 0)
	}

	views := make([]*reportView, 0, len(reports))
	for i := range reports {
		views = append(views, toReportView(&reports[i]))
	}
	return ctx.JSON(http.StatusOK, views)
}

// handleListSightings lists sightings newest first, cached briefly since
// listings dominate read traffic.
func (c *Controller) handleListSightings(ctx echo.Context) error {
	limit, offset := listParams(ctx)

	cacheKey := "sightings:" + ctx.QueryString()
	if cached, found := c.listCache.Get(cacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	sightings, err := c.rt.DS.GetSightings(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list sightings", 0)
	}

	views := make([]*sightingView, 0, len(sightings))
	for i := range sightings {
		views = append(views, toSightingView(&sightings[i]))
	}
	c.listCache.Set(cacheKey, views, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, views)
}

// handleAdminNotifications lists notifications across all users.
func (c *Controller) handleAdminNotifications(ctx echo.Context) error {
	limit, offset := listParams(ctx)

	cacheKey := "notifications:" + ctx.QueryString()
	if cached, found := c.listCache.Get(cacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	notifications, err := c.rt.DS.GetNotifications(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list notifications", 0)
	}

	c.listCache.Set(cacheKey, notifications, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, notifications)
}

// handleMarkNotificationRead flips one notification's read flag.
func (c *Controller) handleMarkNotificationRead(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid notification id", 0)
	}

	if err := c.rt.DS.MarkNotificationRead(id); err != nil {
		return c.HandleError(ctx, err, "failed to mark notification read", 0)
	}

	c.invalidateListCaches()
	return ctx.JSON(http.StatusOK, map[string]bool{"read": true})
}

// handleHealth reports component availability.
func (c *Controller) handleHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.rt.Health())
}

// pathID parses the :id path parameter.
func pathID(ctx echo.Context) (uint, error) {
	raw := ctx.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.Newf("invalid id %q", raw).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// listParams reads pagination query parameters with defensive defaults.
func listParams(ctx echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ = strconv.Atoi(ctx.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
