// interfaces.go: defines the interface for database operations and the GORM
// implementation shared by the SQLite and MySQL stores.
package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/errors"
)

// Sentinel errors for lookups that resolve nothing.
var (
	ErrSightingNotFound     = errors.Newf("sighting not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrReportNotFound       = errors.Newf("report not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrNotificationNotFound = errors.Newf("notification not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrUserNotFound         = errors.Newf("user not found").Component("datastore").Category(errors.CategoryNotFound).Build()
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Users
	SaveUser(user *User) error
	GetUser(id uint) (User, error)

	// Sightings
	SaveSighting(sighting *Sighting, report *Report) error
	UpdateSighting(sighting *Sighting, report *Report) error
	GetSighting(id uint) (Sighting, error)
	DeleteSighting(id uint) error
	LatestSightingForSpecies(userID uint, species string) (*Sighting, error)
	GetSightings(limit, offset int) ([]Sighting, error)

	// Reports
	GetReport(id uint) (Report, error)
	DeleteReport(id uint) error
	GetUserReports(userID uint) ([]Report, error)

	// Workflow
	SaveTransition(report *Report, history *AdminHistory, notification *UserNotification) error

	// Notifications
	SaveNotification(notification *UserNotification) error
	UpdateNotificationEmail(id uint, sent bool, errText string) error
	MarkNotificationRead(id uint) error
	GetNotifications(limit, offset int) ([]UserNotification, error)
	GetUserNotifications(userID uint) ([]UserNotification, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for whichever database backend the settings enable.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// SaveUser creates or updates a user row.
func (ds *DataStore) SaveUser(user *User) error {
	if user == nil {
		return validationError("user cannot be nil", "user", nil)
	}
	if err := ds.DB.Save(user).Error; err != nil {
		return dbError(err, "save_user", errors.PriorityMedium, "user_id", user.ID)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (ds *DataStore) GetUser(id uint) (User, error) {
	var user User
	if err := ds.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, dbError(err, "get_user", errors.PriorityMedium, "user_id", id)
	}
	return user, nil
}

// SaveSighting stores a sighting and its report as a single transaction.
// A partially committed sighting-without-report is an inconsistent state,
// so either both rows commit or neither does.
func (ds *DataStore) SaveSighting(sighting *Sighting, report *Report) error {
	if sighting == nil {
		return validationError("sighting cannot be nil", "sighting", nil)
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sighting).Error; err != nil {
			return fmt.Errorf("saving sighting: %w", err)
		}
		if report != nil {
			report.SightingID = &sighting.ID
			if err := tx.Create(report).Error; err != nil {
				return fmt.Errorf("saving report: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "save_sighting", errors.PriorityHigh,
			"species", sighting.Species,
			"user_id", sighting.UserID)
	}
	return nil
}

// UpdateSighting persists changes to an existing sighting/report pair in a
// single transaction. Used by the best-effort duplicate-species merge.
func (ds *DataStore) UpdateSighting(sighting *Sighting, report *Report) error {
	if sighting == nil || sighting.ID == 0 {
		return validationError("sighting must exist to be updated", "sighting_id", nil)
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sighting).Error; err != nil {
			return fmt.Errorf("updating sighting: %w", err)
		}
		if report != nil {
			if err := tx.Save(report).Error; err != nil {
				return fmt.Errorf("updating report: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "update_sighting", errors.PriorityHigh,
			"sighting_id", sighting.ID)
	}
	return nil
}

// GetSighting retrieves a sighting with its report.
func (ds *DataStore) GetSighting(id uint) (Sighting, error) {
	var sighting Sighting
	if err := ds.DB.Preload("Report").First(&sighting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Sighting{}, ErrSightingNotFound
		}
		return Sighting{}, dbError(err, "get_sighting", errors.PriorityMedium, "sighting_id", id)
	}
	return sighting, nil
}

// DeleteSighting removes a sighting, cascading to its report and that
// report's history and notification rows. Deletes are explicit rather than
// relying on database-level cascade enforcement, which SQLite only honors
// with foreign keys enabled.
func (ds *DataStore) DeleteSighting(id uint) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var sighting Sighting
		if err := tx.First(&sighting, id).Error; err != nil {
			return err
		}

		var report Report
		err := tx.Where("sighting_id = ?", id).First(&report).Error
		switch {
		case err == nil:
			if err := deleteReportRows(tx, report.ID); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Sighting without a report, nothing to cascade.
		default:
			return err
		}

		return tx.Delete(&Sighting{}, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSightingNotFound
		}
		return dbError(err, "delete_sighting", errors.PriorityHigh, "sighting_id", id)
	}
	return nil
}

// deleteReportRows removes a report and its dependent rows inside tx.
func deleteReportRows(tx *gorm.DB, reportID uint) error {
	if err := tx.Where("report_id = ?", reportID).Delete(&AdminHistory{}).Error; err != nil {
		return fmt.Errorf("deleting admin history: %w", err)
	}
	if err := tx.Where("report_id = ?", reportID).Delete(&UserNotification{}).Error; err != nil {
		return fmt.Errorf("deleting notifications: %w", err)
	}
	if err := tx.Delete(&Report{}, reportID).Error; err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return nil
}

// LatestSightingForSpecies returns the most recent sighting of a species by
// a user, with its report preloaded, or nil when the user has none.
func (ds *DataStore) LatestSightingForSpecies(userID uint, species string) (*Sighting, error) {
	var sighting Sighting
	err := ds.DB.Preload("Report").
		Where("user_id = ? AND LOWER(species) = LOWER(?)", userID, species).
		Order("created_at DESC").
		First(&sighting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err, "latest_sighting_for_species", errors.PriorityMedium,
			"user_id", userID, "species", species)
	}
	return &sighting, nil
}

// GetSightings lists sightings newest first.
func (ds *DataStore) GetSightings(limit, offset int) ([]Sighting, error) {
	var sightings []Sighting
	err := ds.DB.Preload("Report").
		Order("created_at DESC").
		Limit(normalizeLimit(limit)).Offset(offset).
		Find(&sightings).Error
	if err != nil {
		return nil, dbError(err, "get_sightings", errors.PriorityMedium)
	}
	return sightings, nil
}

// GetReport retrieves a report with its history.
func (ds *DataStore) GetReport(id uint) (Report, error) {
	var report Report
	if err := ds.DB.Preload("History").First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, dbError(err, "get_report", errors.PriorityMedium, "report_id", id)
	}
	return report, nil
}

// DeleteReport removes a report and its dependent rows.
func (ds *DataStore) DeleteReport(id uint) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var report Report
		if err := tx.First(&report, id).Error; err != nil {
			return err
		}
		return deleteReportRows(tx, report.ID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return dbError(err, "delete_report", errors.PriorityHigh, "report_id", id)
	}
	return nil
}

// GetUserReports lists a user's reports newest first.
func (ds *DataStore) GetUserReports(userID uint) ([]Report, error) {
	var reports []Report
	err := ds.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, dbError(err, "get_user_reports", errors.PriorityMedium, "user_id", userID)
	}
	return reports, nil
}

// SaveTransition persists one status transition: the updated report, an
// optional history row and an optional notification, all in one
// transaction. A report-without-history partial commit would corrupt the
// audit trail, so the write is all-or-nothing.
func (ds *DataStore) SaveTransition(report *Report, history *AdminHistory, notification *UserNotification) error {
	if report == nil || report.ID == 0 {
		return validationError("report must exist for a transition", "report_id", nil)
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(report).Error; err != nil {
			return fmt.Errorf("saving report: %w", err)
		}
		if history != nil {
			history.ReportID = report.ID
			if err := tx.Create(history).Error; err != nil {
				return fmt.Errorf("saving admin history: %w", err)
			}
		}
		if notification != nil {
			notification.ReportID = report.ID
			if err := tx.Create(notification).Error; err != nil {
				return fmt.Errorf("saving notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "save_transition", errors.PriorityHigh,
			"report_id", report.ID,
			"status", report.Status)
	}
	return nil
}

// SaveNotification stores a standalone notification (freeform admin
// message).
func (ds *DataStore) SaveNotification(notification *UserNotification) error {
	if notification == nil {
		return validationError("notification cannot be nil", "notification", nil)
	}
	if err := ds.DB.Create(notification).Error; err != nil {
		return dbError(err, "save_notification", errors.PriorityMedium,
			"report_id", notification.ReportID)
	}
	return nil
}

// UpdateNotificationEmail records the email delivery outcome on a
// notification row.
func (ds *DataStore) UpdateNotificationEmail(id uint, sent bool, errText string) error {
	result := ds.DB.Model(&UserNotification{}).Where("id = ?", id).
		Updates(map[string]any{"email_sent": sent, "email_error": errText})
	if result.Error != nil {
		return dbError(result.Error, "update_notification_email", errors.PriorityLow,
			"notification_id", id)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkNotificationRead flips the read flag on a notification.
func (ds *DataStore) MarkNotificationRead(id uint) error {
	result := ds.DB.Model(&UserNotification{}).Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return dbError(result.Error, "mark_notification_read", errors.PriorityLow,
			"notification_id", id)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// GetNotifications lists notifications newest first across all users.
func (ds *DataStore) GetNotifications(limit, offset int) ([]UserNotification, error) {
	var notifications []UserNotification
	err := ds.DB.Order("created_at DESC").
		Limit(normalizeLimit(limit)).Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "get_notifications", errors.PriorityMedium)
	}
	return notifications, nil
}

// GetUserNotifications lists one user's notifications newest first.
func (ds *DataStore) GetUserNotifications(userID uint) ([]UserNotification, error) {
	var notifications []UserNotification
	err := ds.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "get_user_notifications", errors.PriorityMedium,
			"user_id", userID)
	}
	return notifications, nil
}

const defaultListLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}
