package guard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renalscan/renalscan-go/internal/session"
)

// Snapshotter yields the current session view. Satisfied by *session.Store.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// loadingHandler is invoked while the session is still resolving. The
// server installs a handler that renders the neutral placeholder page.
type loadingHandler func(c echo.Context) error

// Middleware bridges the guard decisions into echo's middleware chain.
type Middleware struct {
	store   Snapshotter
	loading loadingHandler
}

// NewMiddleware creates guard middleware over the given session store.
// loading may be nil, in which case a plain 200 is served while resolving.
func NewMiddleware(store Snapshotter, loading func(c echo.Context) error) *Middleware {
	return &Middleware{store: store, loading: loading}
}

// Authenticated wraps a private page handler.
func (m *Middleware) Authenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := RequireAuthenticated(m.store.Snapshot(), c.Request().URL.Path)
		return m.apply(c, d, next)
	}
}

// Anonymous wraps an entry page handler (login, signup). The navigation
// intent rides in the redirect query parameter.
func (m *Middleware) Anonymous(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := RequireAnonymous(m.store.Snapshot(), c.QueryParam(RedirectParam))
		return m.apply(c, d, next)
	}
}

func (m *Middleware) apply(c echo.Context, d Decision, next echo.HandlerFunc) error {
	switch d.Outcome {
	case Redirect:
		return c.Redirect(http.StatusFound, d.Target)
	case Loading:
		if m.loading != nil {
			return m.loading(c)
		}
		return c.NoContent(http.StatusOK)
	default:
		return next(c)
	}
}
