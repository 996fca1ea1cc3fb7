package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/notification"
)

const testAuthBase = "http://auth.test/api/v1"

type toastRecorder struct {
	messages []string
	types    []notification.ToastType
}

func (r *toastRecorder) SendToast(message string, tt notification.ToastType, _ string) error {
	r.messages = append(r.messages, message)
	r.types = append(r.types, tt)
	return nil
}

func newTestStore(t *testing.T) (*Store, *toastRecorder) {
	t.Helper()
	client, err := apiclient.New(&apiclient.Config{
		AuthBaseURL:      testAuthBase,
		DetectionBaseURL: "http://backend.test/api/v1",
		InferenceBaseURL: "http://inference.test",
	}, nil)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	rec := &toastRecorder{}
	return NewStore(client, rec, nil), rec
}

func TestInitializeRestoresSession(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodGet, testAuthBase+"/auth/me",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"user":{"id":1,"name":"A","email":"a@b.com"}}}`))

	s.Initialize(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "A", snap.Identity.Name)
}

func TestInitializeFailureResolvesAnonymous(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodGet, testAuthBase+"/auth/me",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{}`))
	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/logout",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	s.Initialize(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.Identity)
}

func TestInitializeRunsOnce(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodGet, testAuthBase+"/auth/me",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"user":{"id":1,"name":"A","email":"a@b.com"}}}`))

	s.Initialize(context.Background())
	s.Initialize(context.Background())

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+testAuthBase+"/auth/me"])
}

func TestLoginSuccessSetsIdentity(t *testing.T) {
	s, rec := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/login",
		httpmock.NewStringResponder(http.StatusOK,
			`{"status":"success","token":"jwt","data":{"user":{"id":1,"name":"A","email":"a@b.com"}}}`))

	res := s.Login(context.Background(), "a@b.com", "secret")
	require.True(t, res.Success, res.Error)

	assert.True(t, s.IsAuthenticated())
	require.NotNil(t, s.Identity())
	assert.Equal(t, "A", s.Identity().Name)

	require.Len(t, rec.messages, 1)
	assert.Equal(t, "Logged in successfully!", rec.messages[0])
	assert.Equal(t, notification.ToastTypeSuccess, rec.types[0])
}

func TestLoginFailureLeavesIdentityUntouched(t *testing.T) {
	s, rec := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/login",
		httpmock.NewStringResponder(http.StatusUnauthorized,
			`{"message":"Incorrect email or password"}`))

	res := s.Login(context.Background(), "a@b.com", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Incorrect email or password", res.Error)

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Identity())

	require.Len(t, rec.messages, 1)
	assert.Equal(t, notification.ToastTypeError, rec.types[0])
}

func TestSignupSuccessSetsIdentity(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/signup",
		httpmock.NewStringResponder(http.StatusCreated,
			`{"status":"success","data":{"user":{"id":2,"name":"B","email":"b@c.com"}}}`))

	res := s.Signup(context.Background(), &apiclient.SignupRequest{
		Name: "B", Email: "b@c.com", Password: "x", PasswordConfirm: "x",
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, s.IsAuthenticated())
}

func TestLogoutClearsIdentityEvenOnRemoteFailure(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/login",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"user":{"id":1,"name":"A","email":"a@b.com"}}}`))
	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/logout",
		httpmock.NewStringResponder(http.StatusBadGateway, ``))

	require.True(t, s.Login(context.Background(), "a@b.com", "secret").Success)
	require.True(t, s.IsAuthenticated())

	s.Logout(context.Background())

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Identity())
}

func TestForceLogoutClearsIdentityWithoutRemoteCall(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPost, testAuthBase+"/auth/login",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"user":{"id":1,"name":"A","email":"a@b.com"}}}`))

	require.True(t, s.Login(context.Background(), "a@b.com", "secret").Success)

	s.ForceLogout()

	assert.False(t, s.IsAuthenticated())
	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["POST "+testAuthBase+"/auth/logout"])
}

func TestUpdateProfileRefreshesIdentity(t *testing.T) {
	s, _ := newTestStore(t)

	httpmock.RegisterResponder(http.MethodPatch, testAuthBase+"/auth/updateMe",
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"user":{"id":1,"name":"Renamed","email":"new@b.com"}}}`))

	res := s.UpdateProfile(context.Background(), "Renamed", "new@b.com")
	require.True(t, res.Success, res.Error)
	require.NotNil(t, s.Identity())
	assert.Equal(t, "Renamed", s.Identity().Name)
}
