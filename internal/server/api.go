package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/guard"
	"github.com/renalscan/renalscan-go/internal/notification"
)

// maxUploadSize caps scan uploads read into memory.
const maxUploadSize = 32 << 20

// registerAPI wires the JSON endpoints the pages call.
func (s *Server) registerAPI() {
	api := s.Echo.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", s.apiLogin)
	auth.POST("/signup", s.apiSignup)
	auth.POST("/logout", s.apiLogout)
	auth.GET("/me", s.apiCurrentUser)
	auth.POST("/profile", s.apiUpdateProfile, s.requireSession)
	auth.POST("/password", s.apiUpdatePassword, s.requireSession)
	auth.POST("/reset-password", s.apiResetPassword)

	det := api.Group("/detections", s.requireSession)
	det.POST("/upload", s.apiUpload)
	det.POST("/predict", s.apiPredict)
	det.GET("", s.apiListDetections)
	det.GET("/overview", s.apiOverview)

	api.GET("/notifications", s.apiNotifications, s.requireSession)
	api.POST("/notifications/:id/read", s.apiMarkRead, s.requireSession)
	api.GET("/notifications/stream", s.apiNotificationStream)
}

// requireSession rejects API calls made without an authenticated session.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.store.IsAuthenticated() {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Not authenticated",
			})
		}
		return next(c)
	}
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

type authResponse struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
	User     *apiclient.User `json:"user,omitempty"`
}

func (s *Server) apiLogin(c echo.Context) error {
	var p loginPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, authResponse{Error: "Invalid request"})
	}

	res := s.store.Login(c.Request().Context(), p.Email, p.Password)
	if !res.Success {
		return c.JSON(http.StatusUnauthorized, authResponse{Error: res.Error})
	}

	target := guard.DefaultAuthenticatedPath
	if guard.IsValidRedirect(p.Redirect) {
		target = p.Redirect
	}
	return c.JSON(http.StatusOK, authResponse{Success: true, Redirect: target})
}

type signupPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (s *Server) apiSignup(c echo.Context) error {
	var p signupPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, authResponse{Error: "Invalid request"})
	}

	res := s.store.Signup(c.Request().Context(), &apiclient.SignupRequest{
		Name:            p.Name,
		Email:           p.Email,
		Password:        p.Password,
		PasswordConfirm: p.PasswordConfirm,
	})
	if !res.Success {
		return c.JSON(http.StatusBadRequest, authResponse{Error: res.Error})
	}
	return c.JSON(http.StatusOK, authResponse{
		Success: true, Redirect: guard.DefaultAuthenticatedPath,
	})
}

func (s *Server) apiLogout(c echo.Context) error {
	s.store.Logout(c.Request().Context())
	return c.JSON(http.StatusOK, authResponse{Success: true, Redirect: guard.LoginPath})
}

func (s *Server) apiCurrentUser(c echo.Context) error {
	identity := s.store.Identity()
	if identity == nil {
		return c.JSON(http.StatusUnauthorized, authResponse{Error: "Not authenticated"})
	}
	return c.JSON(http.StatusOK, authResponse{Success: true, User: identity})
}

func (s *Server) apiUpdateProfile(c echo.Context) error {
	var p struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, authResponse{Error: "Invalid request"})
	}
	res := s.store.UpdateProfile(c.Request().Context(), p.Name, p.Email)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, authResponse{Error: res.Error})
	}
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

func (s *Server) apiUpdatePassword(c echo.Context) error {
	var p struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, authResponse{Error: "Invalid request"})
	}
	res := s.store.UpdatePassword(c.Request().Context(), p.PasswordCurrent, p.Password, p.PasswordConfirm)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, authResponse{Error: res.Error})
	}
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

func (s *Server) apiResetPassword(c echo.Context) error {
	var p struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, authResponse{Error: "Invalid request"})
	}
	res := s.store.ResetPassword(c.Request().Context(), p.Token, p.Password, p.PasswordConfirm)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, authResponse{Error: res.Error})
	}
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

// apiUpload stages the posted scan and submits it in one step, returning
// the resulting task snapshot.
func (s *Server) apiUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "No scan image in request"})
	}
	if fileHeader.Size > maxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]any{"error": "Scan image too large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Unreadable scan image"})
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Unreadable scan image"})
	}

	if !s.task.SelectFile(fileHeader.Filename, content) {
		return c.JSON(http.StatusConflict, s.task.Snapshot())
	}
	snap := s.task.Submit(c.Request().Context())
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) apiPredict(c echo.Context) error {
	var measurements map[string]string
	if err := c.Bind(&measurements); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid request"})
	}
	pred, errMsg := s.task.SubmitTabular(c.Request().Context(), measurements)
	if errMsg != "" {
		return c.JSON(http.StatusBadGateway, map[string]any{"error": errMsg})
	}
	return c.JSON(http.StatusOK, map[string]any{"prediction": pred})
}

func (s *Server) apiListDetections(c echo.Context) error {
	view, err := s.history.Partitioned(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "Failed to fetch detections"})
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) apiOverview(c echo.Context) error {
	overview, err := s.history.Overview(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "Failed to fetch detections"})
	}
	return c.JSON(http.StatusOK, overview)
}

func (s *Server) apiNotifications(c echo.Context) error {
	if s.notifier == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	list, err := s.notifier.List(&notification.FilterOptions{Limit: 50})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "Failed to list notifications"})
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) apiMarkRead(c echo.Context) error {
	if s.notifier == nil {
		return c.NoContent(http.StatusNotFound)
	}
	if err := s.notifier.MarkAsRead(c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "Notification not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// apiNotificationStream pushes notifications to the page over SSE. Toasts
// raised by the session and workflow services arrive as "toast" events.
func (s *Server) apiNotificationStream(c echo.Context) error {
	if s.notifier == nil {
		return c.NoContent(http.StatusNotFound)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ch, cancel := s.notifier.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			event := "notification"
			var payload any = n
			if toast := notification.AsToast(n); toast != nil {
				event = "toast"
				payload = toast
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			if _, err := resp.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n")); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
