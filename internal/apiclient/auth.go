package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
)

// User is the authenticated identity returned by the auth collaborator.
type User struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// authEnvelope is the auth collaborator's response shape: the user record
// nests under data, a session token may ride along at the top level.
type authEnvelope struct {
	remoteEnvelope
	Token string `json:"token,omitempty"`
	Data  struct {
		User *User `json:"user"`
	} `json:"data"`
}

// LoginRequest carries the credential pair for Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest carries the registration fields for Signup.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// CurrentUser performs the session bootstrap check ("who am I").
func (c *Client) CurrentUser(ctx context.Context) Result[User] {
	return c.userCall(ctx, epCurrentUser, http.MethodGet, c.cfg.AuthBaseURL+"/auth/me", nil, "Failed to fetch user")
}

// Login authenticates with the credential pair. The session cookie set by
// the collaborator lands in the cookie jar as a side effect.
func (c *Client) Login(ctx context.Context, email, password string) Result[User] {
	body, err := json.Marshal(LoginRequest{Email: email, Password: password})
	if err != nil {
		return failure[User]("Login failed")
	}
	return c.userCall(ctx, epLogin, http.MethodPost, c.cfg.AuthBaseURL+"/auth/login", body, "Login failed")
}

// Signup registers a new account and authenticates it.
func (c *Client) Signup(ctx context.Context, req *SignupRequest) Result[User] {
	body, err := json.Marshal(req)
	if err != nil {
		return failure[User]("Signup failed")
	}
	return c.userCall(ctx, epSignup, http.MethodPost, c.cfg.AuthBaseURL+"/auth/signup", body, "Signup failed")
}

// UpdateProfile mutates the identity's name and email.
func (c *Client) UpdateProfile(ctx context.Context, name, email string) Result[User] {
	body, err := json.Marshal(map[string]string{"name": name, "email": email})
	if err != nil {
		return failure[User]("Update profile failed")
	}
	return c.userCall(ctx, epUpdateProfile, http.MethodPatch, c.cfg.AuthBaseURL+"/auth/updateMe", body, "Update profile failed")
}

// Logout ends the remote session. Callers treat failures as best-effort.
func (c *Client) Logout(ctx context.Context) Result[struct{}] {
	status, data, err := c.do(ctx, epLogout, http.MethodPost, c.cfg.AuthBaseURL+"/auth/logout", nil, "")
	if err != nil {
		return failure[struct{}]("Logout failed")
	}
	if !is2xx(status) {
		return failure[struct{}](remoteMessage(data, "Logout failed"))
	}
	return success(&struct{}{})
}

// UpdatePassword rotates the account credential.
func (c *Client) UpdatePassword(ctx context.Context, current, password, confirm string) Result[struct{}] {
	body, err := json.Marshal(map[string]string{
		"passwordCurrent": current,
		"password":        password,
		"passwordConfirm": confirm,
	})
	if err != nil {
		return failure[struct{}]("Update password failed")
	}
	status, data, doErr := c.do(ctx, epUpdatePassword, http.MethodPost, c.cfg.AuthBaseURL+"/auth/updateMyPassword", body, "application/json")
	if doErr != nil {
		return failure[struct{}]("Update password failed")
	}
	if !is2xx(status) {
		return failure[struct{}](remoteMessage(data, "Update password failed"))
	}
	return success(&struct{}{})
}

// ResetPassword completes a password reset using the emailed token.
// The collaborator answers 200 on success only.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) Result[struct{}] {
	body, err := json.Marshal(map[string]string{
		"token":           token,
		"password":        password,
		"passwordConfirm": confirm,
	})
	if err != nil {
		return failure[struct{}]("Failed to reset password")
	}
	status, data, doErr := c.do(ctx, epResetPassword, http.MethodPost, c.cfg.AuthBaseURL+"/auth/resetPassword", body, "application/json")
	if doErr != nil {
		return failure[struct{}]("Failed to reset password")
	}
	if status != http.StatusOK {
		return failure[struct{}](remoteMessage(data, "Failed to reset password"))
	}
	return success(&struct{}{})
}

// userCall runs one auth endpoint returning a user envelope.
func (c *Client) userCall(ctx context.Context, endpoint, method, url string, body []byte, fallback string) Result[User] {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	status, data, err := c.do(ctx, endpoint, method, url, body, contentType)
	if err != nil {
		return failure[User](fallback)
	}
	if !is2xx(status) {
		return failure[User](remoteMessage(data, fallback))
	}
	var env authEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Data.User == nil {
		c.log.Warn("malformed auth response", "endpoint", endpoint)
		return failure[User](fallback)
	}
	return success(env.Data.User)
}
