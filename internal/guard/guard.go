// Package guard decides whether a page renders, waits, or redirects based
// on the session store's snapshot. Guards are pure functions over the
// snapshot so the policy is testable without a server.
package guard

import (
	"net/url"
	"strings"

	"github.com/renalscan/renalscan-go/internal/session"
)

// Outcome is what the guard tells the caller to do.
type Outcome int

const (
	// Render means the requested page may be served.
	Render Outcome = iota
	// Loading means the session is still resolving; serve the neutral
	// placeholder, never the protected content and never a redirect.
	Loading
	// Redirect means the caller must send the user to Decision.Target.
	Redirect
)

// Decision is the guard's verdict for one request.
type Decision struct {
	Outcome Outcome
	Target  string // set when Outcome is Redirect
}

const (
	// LoginPath is where unauthenticated users are sent.
	LoginPath = "/login"
	// DefaultAuthenticatedPath is where authenticated users land when no
	// navigation intent survives validation.
	DefaultAuthenticatedPath = "/dashboard"
	// RedirectParam carries the navigation intent through the login flow.
	RedirectParam = "redirect"

	maxRedirectLength = 512
)

// RequireAuthenticated protects private pages. Anonymous users are sent to
// the login page with the requested path preserved as navigation intent so
// a later login can resume where they were headed.
func RequireAuthenticated(snap session.Snapshot, requestedPath string) Decision {
	if snap.IsLoading {
		return Decision{Outcome: Loading}
	}
	if snap.IsAuthenticated {
		return Decision{Outcome: Render}
	}
	target := LoginPath
	if IsValidRedirect(requestedPath) && requestedPath != LoginPath {
		target = LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(requestedPath)
	}
	return Decision{Outcome: Redirect, Target: target}
}

// RequireAnonymous protects entry pages (login, signup). Authenticated
// users are bounced to their navigation intent when one survives
// validation, otherwise to the default landing page.
func RequireAnonymous(snap session.Snapshot, intent string) Decision {
	if snap.IsLoading {
		return Decision{Outcome: Loading}
	}
	if !snap.IsAuthenticated {
		return Decision{Outcome: Render}
	}
	if IsValidRedirect(intent) {
		return Decision{Outcome: Redirect, Target: intent}
	}
	return Decision{Outcome: Redirect, Target: DefaultAuthenticatedPath}
}

// IsValidRedirect reports whether the given path is safe to redirect to
// after login. Only same-origin absolute paths qualify; anything that
// could escape the origin (scheme, protocol-relative, traversal) or that
// is not a plain path is rejected.
func IsValidRedirect(path string) bool {
	if path == "" || len(path) > maxRedirectLength {
		return false
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	if strings.Contains(path, "..") {
		return false
	}
	if strings.Contains(path, "://") || strings.ContainsAny(path, "\r\n") {
		return false
	}
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
