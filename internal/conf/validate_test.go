package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSettings(t *testing.T) *Settings {
	t.Helper()
	s := &Settings{}
	s.Server.Host = "127.0.0.1"
	s.Server.Port = 8080
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	s.Upload.Path = t.TempDir()
	s.Upload.MaxSizeMB = 8
	return s
}

func TestValidateSettings_MissingModelsAreWarnings(t *testing.T) {
	s := baseSettings(t)
	s.Models.Detection.Path = "/nonexistent/detector.tflite"
	s.Models.Condition.Path = "/nonexistent/condition.tflite"

	result := ValidateSettings(s)
	assert.True(t, result.Valid, "missing models must not fail startup")
	assert.NotEmpty(t, result.Warnings)
	assert.Empty(t, result.Errors)
}

func TestValidateSettings_NoDatabaseIsError(t *testing.T) {
	s := baseSettings(t)
	s.Database.SQLite.Enabled = false

	result := ValidateSettings(s)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "no database backend")
}

func TestValidateSettings_BothDatabasesIsError(t *testing.T) {
	s := baseSettings(t)
	s.Database.MySQL.Enabled = true

	result := ValidateSettings(s)
	assert.False(t, result.Valid)
}

func TestValidateSettings_ExistingFilesProduceNoWarnings(t *testing.T) {
	s := baseSettings(t)
	dir := t.TempDir()
	for _, name := range []string{"d.tflite", "d.txt", "c.tflite", "ref.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	s.Models.Detection.Path = filepath.Join(dir, "d.tflite")
	s.Models.Detection.LabelsPath = filepath.Join(dir, "d.txt")
	s.Models.Condition.Path = filepath.Join(dir, "c.tflite")
	s.Reference.Path = filepath.Join(dir, "ref.csv")

	result := ValidateSettings(s)
	assert.True(t, result.Valid)
	assert.False(t, result.HasIssues())
}

func TestValidateSettings_MailRequiresHost(t *testing.T) {
	s := baseSettings(t)
	s.Mail.Enabled = true
	s.Mail.From = "noreply@example.org"

	result := ValidateSettings(s)
	assert.False(t, result.Valid)
}
