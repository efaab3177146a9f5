// config.go: settings struct for the WildSight service and functions to load
// and persist the settings through viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerSettings contains settings for the HTTP server.
type ServerSettings struct {
	Host string // listen address
	Port int    // listen port
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// UploadSettings configures uploaded media handling.
type UploadSettings struct {
	Path      string // directory for uploaded images/frames
	MaxSizeMB int    // maximum accepted upload size
}

// ModelSettings describes one TFLite model on disk.
type ModelSettings struct {
	Path       string // path to .tflite model file
	LabelsPath string // path to label list, one label per line
	Threshold  float64
}

// ModelsSettings groups the inference models used by the service.
type ModelsSettings struct {
	Detection ModelSettings // object detection model
	Condition ModelSettings // condition classification model
}

// ReferenceSettings configures the species reference dataset.
type ReferenceSettings struct {
	Path string // path to reference CSV
}

// MailSettings configures outbound status-update email.
type MailSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	HTML     bool // send HTML bodies; false delivers the text alternative
}

// Settings is the root configuration for the service.
type Settings struct {
	Debug bool

	Main struct {
		Name string // node name, used in log and report metadata
		Log  struct {
			Enabled bool
			Path    string
		}
	}

	Server    ServerSettings
	Database  DatabaseSettings
	Upload    UploadSettings
	Models    ModelsSettings
	Reference ReferenceSettings
	Mail      MailSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
)

// Load reads the configuration from file and environment, applying defaults
// for anything unset. Environment variables use the WILDSIGHT_ prefix with
// underscores for nesting (WILDSIGHT_DATABASE_MYSQL_HOST).
func Load() (*Settings, error) {
	var loadErr error
	once.Do(func() {
		settingsInstance, loadErr = loadSettings()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return settingsInstance, nil
}

func loadSettings() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}
	viper.SetEnvPrefix("wildsight")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(envKeyReplacer())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults plus environment apply.
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return settings, nil
}

// configPaths returns the ordered list of directories searched for config.yaml.
func configPaths() []string {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "wildsight"))
	}
	paths = append(paths, "/etc/wildsight")
	return paths
}

// SaveDefault writes the current settings as a YAML config file, creating
// parent directories as needed. Used by the CLI to bootstrap a config file.
func SaveDefault(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetBasePath ensures the given directory exists relative to the working
// directory and returns it.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		fmt.Printf("failed to create directory %s: %v\n", path, err)
	}
	return path
}
