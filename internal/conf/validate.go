package conf

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/renalscan/renalscan-go/internal/errors"
)

// ValidateSettings checks the loaded settings for values that would prevent
// the dashboard from starting.
func ValidateSettings(s *Settings) error {
	if err := validatePort(s.WebServer.Port); err != nil {
		return err
	}
	for name, c := range map[string]CollaboratorConfig{
		"auth":      s.Collaborators.Auth,
		"detection": s.Collaborators.Detection,
		"inference": s.Collaborators.Inference,
	} {
		if err := validateBaseURL(name, c.BaseURL); err != nil {
			return err
		}
		if c.Timeout <= 0 {
			return errors.Newf("collaborator %q timeout must be positive", name).
				Component("conf").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	if s.Datastore.Enabled && s.Datastore.Path == "" {
		return errors.Newf("datastore enabled but no path configured").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return errors.Newf("invalid web server port %q", port).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf("collaborator %q base URL %q is not a valid http(s) URL", name, raw).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	if strings.HasSuffix(raw, "/") {
		return errors.Newf("collaborator %q base URL must not end with a slash", name).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
