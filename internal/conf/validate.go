// validate.go: configuration validation performed at startup
package conf

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ValidationResult holds validation outcomes separately from configuration.
// Errors prevent startup; warnings degrade the service (missing model files
// are surfaced through the health endpoint, not treated as fatal).
type ValidationResult struct {
	Warnings []string
	Errors   []string
	Valid    bool
}

// AddWarning adds a warning to the validation result
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

// HasIssues returns true if there are any warnings or errors
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}

// ValidateSettings checks settings for consistency. Missing model or
// reference files produce warnings only; the service starts degraded.
func ValidateSettings(settings *Settings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if settings.Server.Port < 1 || settings.Server.Port > 65535 {
		result.AddError("server port %d out of range", settings.Server.Port)
	}

	if !settings.Database.SQLite.Enabled && !settings.Database.MySQL.Enabled {
		result.AddError("no database backend enabled")
	}
	if settings.Database.SQLite.Enabled && settings.Database.MySQL.Enabled {
		result.AddError("both SQLite and MySQL enabled, pick one")
	}
	if settings.Database.MySQL.Enabled && settings.Database.MySQL.Password == "" {
		result.AddWarning("MySQL enabled without a password")
	}

	if settings.Upload.Path == "" {
		result.AddError("upload path must not be empty")
	}
	if settings.Upload.MaxSizeMB <= 0 {
		result.AddError("upload max size must be positive, got %d", settings.Upload.MaxSizeMB)
	}

	checkFile(result, "detection model", settings.Models.Detection.Path)
	checkFile(result, "detection labels", settings.Models.Detection.LabelsPath)
	checkFile(result, "condition model", settings.Models.Condition.Path)
	checkFile(result, "species reference table", settings.Reference.Path)

	if settings.Mail.Enabled {
		if settings.Mail.Host == "" {
			result.AddError("mail enabled without a host")
		}
		if settings.Mail.From == "" {
			result.AddError("mail enabled without a from address")
		}
	}

	return result
}

func checkFile(result *ValidationResult, what, path string) {
	if path == "" {
		result.AddWarning("%s path not configured", what)
		return
	}
	if _, err := os.Stat(path); err != nil {
		result.AddWarning("%s not found at %s", what, path)
	}
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	return errors.As(err, target)
}
