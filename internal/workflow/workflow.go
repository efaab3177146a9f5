// Package workflow implements the admin review lifecycle for reports:
// status transitions, the append-only audit trail, user notifications and
// best-effort email delivery.
package workflow

import (
	"fmt"
	"log/slog"

	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/logging"
	"github.com/wildsight/wildsight-go/internal/mailer"
)

// Notification types.
const (
	TypeStatusUpdate = "status_update"
	TypeAdminMessage = "admin_message"
)

// ErrInvalidStatus rejects transition requests to a status outside the
// known set.
var ErrInvalidStatus = errors.Newf("invalid report status").
	Component("workflow").
	Category(errors.CategoryValidation).
	Build()

// Actor identifies the admin performing a transition. A nil actor means a
// system-initiated change, which updates status without an audit entry.
type Actor struct {
	ID   uint
	Name string
}

// Outcome is the result of one transition: the updated report plus the
// audit and notification rows it produced, either of which may be nil.
type Outcome struct {
	Report       *datastore.Report
	History      *datastore.AdminHistory
	Notification *datastore.UserNotification
}

// Engine drives report status transitions.
type Engine struct {
	ds     datastore.Interface
	mail   mailer.Mailer
	logger *slog.Logger
}

// NewEngine creates a workflow engine. The mailer may be nil when email
// delivery is not configured.
func NewEngine(ds datastore.Interface, mail mailer.Mailer) *Engine {
	return &Engine{
		ds:     ds,
		mail:   mail,
		logger: logging.ForService("workflow"),
	}
}

// ValidStatus reports whether s is one of the known report statuses.
func ValidStatus(s string) bool {
	switch s {
	case datastore.StatusPending, datastore.StatusUnderReview,
		datastore.StatusResolved, datastore.StatusDismissed:
		return true
	}
	return false
}

// Transition moves a report to newStatus. The status graph is flat: any
// status may move to any other. Exactly one history row and one
// notification are written when the status actually changed (history only
// with an actor present); a same-status request writes neither, though
// non-empty notes still update the report's admin notes.
func (e *Engine) Transition(reportID uint, newStatus string, actor *Actor, notes string) (*Outcome, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	report, err := e.ds.GetReport(reportID)
	if err != nil {
		return nil, err
	}

	previous := report.Status
	if previous == newStatus && notes == "" {
		return &Outcome{Report: &report}, nil
	}

	report.Status = newStatus
	if notes != "" {
		report.AdminNotes = notes
	}

	var history *datastore.AdminHistory
	if actor != nil && previous != newStatus {
		history = &datastore.AdminHistory{
			AdminID:        actor.ID,
			AdminName:      actor.Name,
			Action:         "status_change",
			Notes:          notes,
			PreviousStatus: previous,
			NewStatus:      newStatus,
		}
	}

	var notification *datastore.UserNotification
	if previous != newStatus {
		notification = &datastore.UserNotification{
			UserID:   report.UserID,
			Title:    "Report status updated",
			Message:  statusMessage(newStatus),
			Type:     TypeStatusUpdate,
			Snapshot: e.snapshot(&report),
		}
	}

	if err := e.ds.SaveTransition(&report, history, notification); err != nil {
		return nil, err
	}

	e.logger.Info("report transitioned",
		"report_id", report.ID,
		"previous", previous,
		"status", newStatus,
		"actor", actorName(actor))

	if notification != nil {
		e.deliverEmail(&report, notification, previous)
	}

	return &Outcome{Report: &report, History: history, Notification: notification}, nil
}

// Notify records a freeform admin message against a report and emails the
// owner. The report status is untouched.
func (e *Engine) Notify(reportID uint, actor *Actor, title, message string) (*datastore.UserNotification, error) {
	if message == "" {
		return nil, errors.Newf("notification message cannot be empty").
			Component("workflow").
			Category(errors.CategoryValidation).
			Context("report_id", reportID).
			Build()
	}

	report, err := e.ds.GetReport(reportID)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = "Message about your report"
	}
	notification := &datastore.UserNotification{
		UserID:   report.UserID,
		ReportID: report.ID,
		Title:    title,
		Message:  message,
		Type:     TypeAdminMessage,
		Snapshot: e.snapshot(&report),
	}
	if err := e.ds.SaveNotification(notification); err != nil {
		return nil, err
	}

	e.logger.Info("admin message recorded",
		"report_id", report.ID,
		"actor", actorName(actor))

	e.deliverEmail(&report, notification, report.Status)
	return notification, nil
}

// statusMessage maps a status to its user-facing message, with a generic
// fallback for anything unmapped.
func statusMessage(status string) string {
	switch status {
	case datastore.StatusUnderReview:
		return "Your report is now under review by our team."
	case datastore.StatusResolved:
		return "Your report has been resolved. Thank you for helping local wildlife."
	case datastore.StatusDismissed:
		return "Your report has been reviewed and dismissed."
	case datastore.StatusPending:
		return "Your report has been returned to the pending queue."
	default:
		return "Status updated"
	}
}

// snapshot captures the report's sighting data at notification time, so
// later sighting edits never rewrite notification history.
func (e *Engine) snapshot(report *datastore.Report) *datastore.ReportSnapshot {
	snap := &datastore.ReportSnapshot{Status: report.Status}
	if report.SightingID == nil {
		return snap
	}

	sighting, err := e.ds.GetSighting(*report.SightingID)
	if err != nil {
		e.logger.Warn("snapshot sighting lookup failed",
			"report_id", report.ID,
			"sighting_id", *report.SightingID,
			"error", err)
		return snap
	}

	snap.Species = sighting.Species
	snap.Confidence = sighting.Confidence
	snap.Condition = sighting.Condition
	snap.ConditionConfidence = sighting.ConditionConfidence
	snap.ConservationStatus = sighting.ConservationStatus
	snap.Habitat = sighting.Habitat
	snap.Lifespan = sighting.Lifespan
	snap.Population = sighting.Population
	snap.RecommendedCare = sighting.RecommendedCare
	return snap
}

// deliverEmail renders and sends the notification email, recording the
// outcome on the notification row. Failures never propagate: the
// transition has already committed.
func (e *Engine) deliverEmail(report *datastore.Report, notification *datastore.UserNotification, previousStatus string) {
	if e.mail == nil || !e.mail.Enabled() {
		return
	}

	user, err := e.ds.GetUser(report.UserID)
	if err != nil || user.Email == "" {
		e.recordEmailOutcome(notification, fmt.Errorf("no recipient address for user %d", report.UserID))
		return
	}

	data := mailer.StatusUpdateData{
		Username:    user.Username,
		ReportTitle: report.Title,
		ReportID:    report.ID,
		OldStatus:   previousStatus,
		NewStatus:   report.Status,
		Message:     notification.Message,
		AdminNotes:  report.AdminNotes,
	}
	if notification.Snapshot != nil {
		data.Species = notification.Snapshot.Species
		data.Condition = notification.Snapshot.Condition
	}

	subject, body, err := mailer.RenderStatusUpdate(data)
	if err == nil {
		err = e.mail.Send(user.Email, subject, body)
	}
	e.recordEmailOutcome(notification, err)
}

// recordEmailOutcome records the delivery result on the notification, both
// the persisted row and the in-memory struct callers hand back to clients.
func (e *Engine) recordEmailOutcome(notification *datastore.UserNotification, sendErr error) {
	notification.EmailSent = sendErr == nil
	notification.EmailError = ""
	if sendErr != nil {
		notification.EmailError = sendErr.Error()
		e.logger.Warn("notification email failed",
			"notification_id", notification.ID,
			"error", sendErr)
	}
	if err := e.ds.UpdateNotificationEmail(notification.ID, notification.EmailSent, notification.EmailError); err != nil {
		e.logger.Error("failed to record email outcome",
			"notification_id", notification.ID,
			"error", err)
	}
}

func actorName(actor *Actor) string {
	if actor == nil {
		return "system"
	}
	return actor.Name
}
