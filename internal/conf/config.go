// Package conf holds the dashboard configuration. It defines the settings
// struct and the viper-backed load/save functions.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/renalscan/renalscan-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig describes an optional log file target.
type LogConfig struct {
	Enabled bool   // true to enable log file output
	Path    string // path to log file
}

// CollaboratorConfig describes one remote collaborator endpoint.
type CollaboratorConfig struct {
	BaseURL string        // base URL of the remote service, no trailing slash
	Timeout time.Duration // per-request timeout
}

// CollaboratorsSettings groups the remote services the dashboard consumes.
type CollaboratorsSettings struct {
	Auth      CollaboratorConfig // authentication service (login/signup/me/logout)
	Detection CollaboratorConfig // detection persistence service (upload/save/list)
	Inference CollaboratorConfig // tabular inference service (predict)
}

// Settings contains all runtime configuration for the dashboard.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this dashboard node
		Log  LogConfig // logging configuration
	}

	WebServer struct {
		Debug bool   // true to enable web server debug mode
		Host  string // interface to listen on
		Port  string // port for web server
	}

	Collaborators CollaboratorsSettings // remote service endpoints

	Cache struct {
		TTL             time.Duration // how long a fetched detection list stays fresh
		CleanupInterval time.Duration // expired entry sweep interval
	}

	Datastore struct {
		Enabled bool   // true to mirror fetched detections into a local sqlite db
		Path    string // path to sqlite database
	}
}

// Load reads the configuration into a Settings struct. Missing config files
// are not an error; defaults apply and a commented default file is written
// to the first config path.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.Newf("unmarshaling settings: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// initViper sets up defaults and reads the config file if one exists.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
		return createDefaultConfig(configPaths)
	}
	return nil
}

// GetDefaultConfigPaths returns the config search paths in priority order:
// current directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "renalscan-go"))
	}
	return paths, nil
}

// createDefaultConfig writes the embedded default config to the first
// config path and loads it.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config paths available")
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default config file contents.
func getDefaultConfig() (string, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return "", fmt.Errorf("reading embedded config: %w", err)
	}
	return string(data), nil
}

// Save writes the current settings to path as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Newf("marshaling settings: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Newf("creating config directory: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Newf("writing settings: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
