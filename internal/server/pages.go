package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renalscan/renalscan-go/internal/detection"
	"github.com/renalscan/renalscan-go/internal/guard"
)

// registerPages wires the HTML routes behind their guards. Entry pages
// (login, signup) are anonymous-only; everything behind the dashboard is
// authenticated-only. The reset-password page is reachable either way.
func (s *Server) registerPages() {
	e := s.Echo

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, guard.DefaultAuthenticatedPath)
	})

	e.GET("/login", s.loginPage, s.guard.Anonymous)
	e.GET("/signup", s.signupPage, s.guard.Anonymous)
	e.GET("/reset-password", s.resetPasswordPage)

	e.GET("/dashboard", s.dashboardPage, s.guard.Authenticated)
	e.GET("/detect", s.detectPage, s.guard.Authenticated)
	e.GET("/history", s.historyPage, s.guard.Authenticated)
	e.GET("/profile", s.profilePage, s.guard.Authenticated)
}

// pageData is the base payload every template receives.
func (s *Server) pageData(_ echo.Context, title string) map[string]any {
	return map[string]any{
		"Title": title,
		"User":  s.store.Identity(),
	}
}

func (s *Server) renderLoading(c echo.Context) error {
	return c.Render(http.StatusOK, "loading", s.pageData(c, "Loading"))
}

func (s *Server) loginPage(c echo.Context) error {
	data := s.pageData(c, "Log in")
	if intent := c.QueryParam(guard.RedirectParam); guard.IsValidRedirect(intent) {
		data["Redirect"] = intent
	} else {
		data["Redirect"] = ""
	}
	return c.Render(http.StatusOK, "login", data)
}

func (s *Server) signupPage(c echo.Context) error {
	return c.Render(http.StatusOK, "signup", s.pageData(c, "Sign up"))
}

func (s *Server) resetPasswordPage(c echo.Context) error {
	return c.Render(http.StatusOK, "reset-password", s.pageData(c, "Reset password"))
}

func (s *Server) dashboardPage(c echo.Context) error {
	data := s.pageData(c, "Dashboard")
	overview, err := s.history.Overview(c.Request().Context())
	if err != nil {
		data["OverviewError"] = "History is currently unavailable"
	}
	data["Overview"] = overview
	return c.Render(http.StatusOK, "dashboard", data)
}

func (s *Server) detectPage(c echo.Context) error {
	data := s.pageData(c, "Detect")
	snap := s.task.Snapshot()
	data["Task"] = snap
	if snap.Prediction != nil {
		data["ConfidencePct"] = snap.Prediction.Confidence * 100
	}
	return c.Render(http.StatusOK, "detect", data)
}

// historyEntry is the template-facing projection of one record.
type historyEntry struct {
	ID         string
	CreatedAt  string
	Label      string
	Confidence float64
	Thumbnail  template.URL
}

func (s *Server) historyPage(c echo.Context) error {
	data := s.pageData(c, "History")
	view, err := s.history.Partitioned(c.Request().Context())
	if err != nil {
		data["HistoryError"] = "History is currently unavailable"
	}
	data["ImageBased"] = toEntries(view.ImageBased)
	data["TabularBased"] = toEntries(view.TabularBased)
	return c.Render(http.StatusOK, "history", data)
}

func (s *Server) profilePage(c echo.Context) error {
	return c.Render(http.StatusOK, "profile", s.pageData(c, "Profile"))
}

func toEntries(records []detection.Record) []historyEntry {
	entries := make([]historyEntry, 0, len(records))
	for i := range records {
		r := &records[i]
		entry := historyEntry{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.Format(time.DateTime),
			Label:     r.Label(),
			// thumbnail is a data URI built from bytes we sniffed, safe
			// to mark trusted for the template engine
			Thumbnail: template.URL(detection.ThumbnailDataURI(r.Image)),
		}
		if r.Prediction != nil {
			entry.Confidence = r.Prediction.Confidence
		}
		entries = append(entries, entry)
	}
	return entries
}
