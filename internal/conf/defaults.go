package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default configuration values with viper.
func setDefaults() {
	// Main settings
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "RenalScan-Go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "renalscan.log")

	// Web server settings
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")

	// Collaborator endpoints
	viper.SetDefault("collaborators.auth.baseurl", "http://localhost:5000/api/v1")
	viper.SetDefault("collaborators.auth.timeout", 15*time.Second)
	viper.SetDefault("collaborators.detection.baseurl", "http://localhost:5000/api/v1")
	viper.SetDefault("collaborators.detection.timeout", 60*time.Second)
	viper.SetDefault("collaborators.inference.baseurl", "http://localhost:5001")
	viper.SetDefault("collaborators.inference.timeout", 60*time.Second)

	// History cache
	viper.SetDefault("cache.ttl", 30*time.Second)
	viper.SetDefault("cache.cleanupinterval", 5*time.Minute)

	// Local detection mirror
	viper.SetDefault("datastore.enabled", true)
	viper.SetDefault("datastore.path", "renalscan.db")
}
