package playground

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/internal/engine/nimbus"
	"playground/internal/engine/nimbus/nimbustest"
	"playground/internal/engine/toast"
	"playground/internal/pkg/validator"
)

func testSettings() Settings {
	return Settings{
		ProjectID:      "demo-project-id",
		ListLimit:      5,
		SampleEmail:    "demo@example.com",
		SamplePassword: "demo123",
		ToastDuration:  time.Hour,
		DefaultAPIKey:  APIKeyForm{ID: nimbustest.KeyID, Secret: nimbustest.KeySecret},
	}
}

func newTestSession(t *testing.T) (*Session, *nimbustest.Server) {
	t.Helper()
	srv := nimbustest.NewServer()
	t.Cleanup(srv.Close)

	client, err := nimbus.NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	sess := NewSession("s1", client, testSettings())
	t.Cleanup(sess.Close)
	return sess, srv
}

func login(t *testing.T, sess *Session, srv *nimbustest.Server) {
	t.Helper()
	srv.AddUser("demo@example.com", "demo123")
	sess.SetLoginForm(LoginForm{Email: "demo@example.com", Password: "demo123"})
	require.NoError(t, sess.Login(context.Background()))
}

func TestLogin_EmptyFieldsDoNotCallAPI(t *testing.T) {
	sess, srv := newTestSession(t)

	for _, form := range []LoginForm{{}, {Email: "demo@example.com"}, {Password: "demo123"}} {
		sess.SetLoginForm(form)
		err := sess.Login(context.Background())
		assert.ErrorIs(t, err, validator.ErrCredentialsRequired)
	}

	assert.Equal(t, 0, srv.Hits("POST /v1/auth/login"))
	v := sess.Snapshot()
	assert.Equal(t, toast.Toast{Message: "Email and password required", Kind: toast.Error}, v.Toast)
	assert.False(t, v.Authenticated)
}

func TestLogin_Success(t *testing.T) {
	sess, srv := newTestSession(t)
	login(t, sess, srv)

	v := sess.Snapshot()
	assert.True(t, v.Authenticated)
	assert.True(t, v.HasRefresh)
	assert.Equal(t, "Success! JWT acquired.", v.Toast.Message)
	require.NotNil(t, v.Token)
	assert.Equal(t, "demo@example.com", v.Token.Subject)
	assert.Equal(t, "access", v.Token.Type)
	assert.False(t, v.TokenExpired)

	resp := v.Responses[TabLogin]
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"access_token"`)
}

func TestLogin_NoAccessTokenShowsDetail(t *testing.T) {
	sess, srv := newTestSession(t)
	srv.Handle("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		nimbustest.WriteJSON(w, http.StatusOK, map[string]string{"detail": "MFA required"})
	})

	sess.SetLoginForm(LoginForm{Email: "demo@example.com", Password: "demo123"})
	err := sess.Login(context.Background())
	assert.ErrorIs(t, err, nimbus.ErrNoAccessToken)

	v := sess.Snapshot()
	assert.False(t, v.Authenticated)
	assert.Equal(t, toast.Toast{Message: "MFA required", Kind: toast.Error}, v.Toast)
}

func TestLogin_NoAccessTokenNoDetailShowsGeneric(t *testing.T) {
	sess, srv := newTestSession(t)
	srv.Handle("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		nimbustest.WriteJSON(w, http.StatusOK, map[string]string{"token": "wrong-field"})
	})

	sess.SetLoginForm(LoginForm{Email: "demo@example.com", Password: "demo123"})
	require.Error(t, sess.Login(context.Background()))

	v := sess.Snapshot()
	assert.False(t, v.Authenticated)
	assert.Equal(t, "Login failed", v.Toast.Message)
}

func TestLogin_BadCredentials(t *testing.T) {
	sess, _ := newTestSession(t)

	sess.SetLoginForm(LoginForm{Email: "demo@example.com", Password: "wrong"})
	require.Error(t, sess.Login(context.Background()))

	v := sess.Snapshot()
	assert.False(t, v.Authenticated)
	assert.Equal(t, "Invalid credentials", v.Toast.Message)
	assert.Equal(t, http.StatusUnauthorized, v.Responses[TabLogin].StatusCode)
}

func TestLogin_NetworkError(t *testing.T) {
	sess, srv := newTestSession(t)
	srv.Close()

	sess.SetLoginForm(LoginForm{Email: "demo@example.com", Password: "demo123"})
	assert.ErrorIs(t, sess.Login(context.Background()), nimbus.ErrNetwork)

	v := sess.Snapshot()
	assert.Equal(t, "Network error", v.Toast.Message)
	require.NotNil(t, v.Responses[TabLogin])
	assert.Contains(t, v.Responses[TabLogin].Body, "Network error")
}

func TestRegister(t *testing.T) {
	sess, srv := newTestSession(t)
	ctx := context.Background()

	sess.SetRegisterForm(RegisterForm{Email: "new@example.com"})
	assert.ErrorIs(t, sess.Register(ctx), validator.ErrCredentialsRequired)
	assert.Equal(t, 0, srv.Hits("POST /v1/auth/register"))

	sess.SetRegisterForm(RegisterForm{Email: "new@example.com", Password: "pw"})
	require.NoError(t, sess.Register(ctx))
	assert.Equal(t, "User created: new@example.com", sess.Snapshot().Toast.Message)

	require.Error(t, sess.Register(ctx))
	assert.Equal(t, "User already exists", sess.Snapshot().Toast.Message)
}

func TestSelectTab_LockedUntilLogin(t *testing.T) {
	sess, srv := newTestSession(t)

	assert.Equal(t, TabLogin, sess.Snapshot().Tab)
	require.NoError(t, sess.SelectTab(TabUser))

	assert.ErrorIs(t, sess.SelectTab(TabEvent), validator.ErrTokenRequired)
	assert.ErrorIs(t, sess.SelectTab(TabList), validator.ErrTokenRequired)
	v := sess.Snapshot()
	assert.Equal(t, TabUser, v.Tab)
	assert.Equal(t, "Login first to get JWT", v.Toast.Message)
	for _, tv := range v.Tabs {
		assert.Equal(t, tv.Tab == TabEvent || tv.Tab == TabList, tv.Locked, "tab %s", tv.Tab)
	}

	login(t, sess, srv)
	require.NoError(t, sess.SelectTab(TabEvent))
	assert.Equal(t, TabEvent, sess.Snapshot().Tab)
}

func TestSendEvent_HMAC(t *testing.T) {
	sess, srv := newTestSession(t)
	ctx := context.Background()

	sess.SetAPIKeyForm(APIKeyForm{})
	sess.SetEventForm(EventForm{Name: "page_view", TS: "2024-01-01T00:00:00Z", Page: "/demo"})
	assert.ErrorIs(t, sess.SendEvent(ctx), validator.ErrAPIKeyRequired)

	sess.SetAPIKeyForm(APIKeyForm{ID: nimbustest.KeyID, Secret: nimbustest.KeySecret})
	sess.SetEventForm(EventForm{Name: "page_view", Page: "/demo"})
	assert.ErrorIs(t, sess.SendEvent(ctx), validator.ErrEventFieldsRequired)
	assert.Equal(t, 0, srv.Hits("POST /v1/events"))

	require.NoError(t, sess.FillSample(TabEvent))
	require.NoError(t, sess.SendEvent(ctx))

	v := sess.Snapshot()
	assert.Equal(t, "Event sent! (HMAC)", v.Toast.Message)
	assert.Equal(t, AuthHMAC, v.Event.Mode)
	stored := srv.Events("demo-project-id")
	require.Len(t, stored, 1)
	assert.Equal(t, "page_view", stored[0].Name)
	assert.Equal(t, "/demo", stored[0].Page())
}

func TestSendEvent_HMACBadSecret(t *testing.T) {
	sess, _ := newTestSession(t)

	sess.SetAPIKeyForm(APIKeyForm{ID: nimbustest.KeyID, Secret: "wrong"})
	require.NoError(t, sess.FillSample(TabEvent))
	require.Error(t, sess.SendEvent(context.Background()))

	v := sess.Snapshot()
	assert.Equal(t, toast.Toast{Message: "Bad signature", Kind: toast.Error}, v.Toast)
	assert.Equal(t, http.StatusUnauthorized, v.Responses[TabEvent].StatusCode)
}

func TestSendEvent_JWT(t *testing.T) {
	sess, srv := newTestSession(t)
	ctx := context.Background()

	sess.SetEventForm(EventForm{Name: "signup", TS: "2024-01-01T00:00:00Z", Page: "/join", Mode: AuthJWT})
	assert.ErrorIs(t, sess.SendEvent(ctx), validator.ErrTokenRequired)

	login(t, sess, srv)
	require.NoError(t, sess.SendEvent(ctx))
	assert.Equal(t, "Event sent! (JWT)", sess.Snapshot().Toast.Message)

	last := srv.LastRequest("POST /v1/events")
	assert.Contains(t, last.Header.Get("Authorization"), "Bearer ")
}

func TestListEvents(t *testing.T) {
	sess, srv := newTestSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, sess.ListEvents(ctx), validator.ErrTokenRequired)
	assert.Equal(t, 0, srv.Hits("GET /v1/events"))

	login(t, sess, srv)
	require.NoError(t, sess.FillSample(TabEvent))
	require.NoError(t, sess.SendEvent(ctx))

	require.NoError(t, sess.ListEvents(ctx))
	v := sess.Snapshot()
	assert.Equal(t, "Events loaded", v.Toast.Message)
	require.Len(t, v.Events, 1)
	assert.Equal(t, "/demo", v.Events[0].Page())
	assert.Equal(t, "limit=5&project_id=demo-project-id", srv.LastRequest("GET /v1/events").Query)

	srv.Handle("GET /v1/events", func(w http.ResponseWriter, r *http.Request) {
		nimbustest.Detail(w, http.StatusInternalServerError, "database unavailable")
	})
	require.Error(t, sess.ListEvents(ctx))
	v = sess.Snapshot()
	assert.Empty(t, v.Events, "a failed list clears previously loaded events")
	assert.Equal(t, "database unavailable", v.Toast.Message)
}

func TestRefreshAndLogout(t *testing.T) {
	sess, srv := newTestSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, sess.Refresh(ctx), validator.ErrRefreshRequired)

	login(t, sess, srv)
	require.NoError(t, sess.Refresh(ctx))
	v := sess.Snapshot()
	assert.Equal(t, "Token refreshed", v.Toast.Message)
	assert.True(t, v.Authenticated)
	assert.True(t, v.HasRefresh)
	assert.Equal(t, 1, srv.Hits("POST /v1/auth/refresh"))

	require.NoError(t, sess.SelectTab(TabList))
	sess.Logout()
	v = sess.Snapshot()
	assert.False(t, v.Authenticated)
	assert.Equal(t, TabLogin, v.Tab)
	assert.Empty(t, v.Events)
}

func TestFillSample(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC) }

	require.NoError(t, sess.FillSample(TabLogin))
	require.NoError(t, sess.FillSample(TabUser))
	require.NoError(t, sess.FillSample(TabEvent))
	assert.ErrorIs(t, sess.FillSample(TabList), ErrNoSample)

	v := sess.Snapshot()
	assert.Equal(t, LoginForm{Email: "demo@example.com", Password: "demo123"}, v.Login)
	assert.Equal(t, RegisterForm{Email: "demo@example.com", Password: "demo123"}, v.Register)
	assert.Equal(t, EventForm{Name: "page_view", TS: "2024-05-06T07:08:09.123Z", Page: "/demo", Mode: AuthHMAC}, v.Event)
}

func TestDismissToast(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.SetLoginForm(LoginForm{})
	_ = sess.Login(context.Background())
	require.True(t, sess.Snapshot().Toast.Visible())

	sess.DismissToast()
	assert.False(t, sess.Snapshot().Toast.Visible())
}

func TestParseTab(t *testing.T) {
	tab, ok := ParseTab("list")
	assert.True(t, ok)
	assert.Equal(t, TabList, tab)

	_, ok = ParseTab("admin")
	assert.False(t, ok)
}
