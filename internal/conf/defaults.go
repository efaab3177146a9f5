// defaults.go: default values for settings
package conf

import (
	"strings"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "WildSight")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "wildsight.log")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "wildsight.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "wildsight")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "wildsight")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("upload.path", "uploads/")
	viper.SetDefault("upload.maxsizemb", 32)

	viper.SetDefault("models.detection.path", "models/wildlife_detector.tflite")
	viper.SetDefault("models.detection.labelspath", "models/wildlife_labels.txt")
	viper.SetDefault("models.detection.threshold", 0.25)
	viper.SetDefault("models.condition.path", "models/condition_classifier.tflite")
	viper.SetDefault("models.condition.labelspath", "")
	viper.SetDefault("models.condition.threshold", 0.0)

	viper.SetDefault("reference.path", "data/species_reference.csv")

	viper.SetDefault("mail.enabled", false)
	viper.SetDefault("mail.host", "localhost")
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("mail.username", "")
	viper.SetDefault("mail.password", "")
	viper.SetDefault("mail.from", "wildsight@localhost")
	viper.SetDefault("mail.html", true)
}

// envKeyReplacer maps nested viper keys to environment variable segments.
func envKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
