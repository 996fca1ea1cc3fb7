package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.WebServer.Port = "8080"
	s.Collaborators.Auth = CollaboratorConfig{BaseURL: "http://localhost:5000/api/v1", Timeout: 15 * time.Second}
	s.Collaborators.Detection = CollaboratorConfig{BaseURL: "http://localhost:5000/api/v1", Timeout: time.Minute}
	s.Collaborators.Inference = CollaboratorConfig{BaseURL: "http://localhost:5001", Timeout: time.Minute}
	s.Datastore.Enabled = true
	s.Datastore.Path = "renalscan.db"
	return s
}

func TestValidateSettingsOK(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port  string
		valid bool
	}{
		{"8080", true},
		{"1", true},
		{"65535", true},
		{"0", false},
		{"65536", false},
		{"http", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.port, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			s.WebServer.Port = tt.port
			err := ValidateSettings(s)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateSettingsCollaborators(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Collaborators.Inference.BaseURL = "ftp://example.com"
	assert.Error(t, ValidateSettings(s), "non-http scheme must be rejected")

	s = validSettings()
	s.Collaborators.Auth.BaseURL = "http://localhost:5000/api/v1/"
	assert.Error(t, ValidateSettings(s), "trailing slash must be rejected")

	s = validSettings()
	s.Collaborators.Detection.Timeout = 0
	assert.Error(t, ValidateSettings(s), "zero timeout must be rejected")
}

func TestValidateSettingsDatastore(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Datastore.Path = ""
	assert.Error(t, ValidateSettings(s))

	s.Datastore.Enabled = false
	assert.NoError(t, ValidateSettings(s), "path is not required when the mirror is disabled")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Main.Name = "test-node"
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, s.Save(path))

	data, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Contains(t, data, "collaborators:", "embedded default config must document collaborators")
}
