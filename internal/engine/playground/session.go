package playground

import (
	"context"
	"sync"
	"time"

	"playground/internal/engine/nimbus"
	"playground/internal/engine/toast"
	"playground/internal/platform/auth"
)

type Tab string

const (
	TabUser  Tab = "user"
	TabLogin Tab = "login"
	TabEvent Tab = "event"
	TabList  Tab = "list"
)

var tabOrder = []struct {
	tab   Tab
	label string
}{
	{TabUser, "Create User"},
	{TabLogin, "Login"},
	{TabEvent, "Send Event"},
	{TabList, "List Events"},
}

func ParseTab(s string) (Tab, bool) {
	for _, t := range tabOrder {
		if string(t.tab) == s {
			return t.tab, true
		}
	}
	return "", false
}

// needsToken reports whether the tab is only reachable once logged in.
func (t Tab) needsToken() bool {
	return t == TabEvent || t == TabList
}

type AuthMode string

const (
	AuthHMAC AuthMode = "hmac"
	AuthJWT  AuthMode = "jwt"
)

type LoginForm struct {
	Email    string
	Password string
}

type RegisterForm struct {
	Email    string
	Password string
}

type EventForm struct {
	Name string
	TS   string
	Page string
	Mode AuthMode
}

type APIKeyForm struct {
	ID     string
	Secret string
}

// ResponseView is the last raw API response shown on a screen.
type ResponseView struct {
	StatusCode int
	Body       string
	RequestID  string
	Elapsed    time.Duration
}

// API is the part of the Nimbus client a session drives.
type API interface {
	Register(ctx context.Context, creds nimbus.Credentials) (*nimbus.Response, error)
	Login(ctx context.Context, creds nimbus.Credentials) (*nimbus.TokenPair, *nimbus.Response, error)
	Refresh(ctx context.Context, refreshToken string) (*nimbus.TokenPair, *nimbus.Response, error)
	IngestSigned(ctx context.Context, key nimbus.APIKey, in nimbus.IngestRequest) (*nimbus.Response, error)
	IngestWithToken(ctx context.Context, token string, in nimbus.IngestRequest) (*nimbus.Response, error)
	ListEvents(ctx context.Context, token string, q nimbus.ListQuery) ([]nimbus.Event, *nimbus.Response, error)
}

type Settings struct {
	ProjectID      string
	ListLimit      int
	SampleEmail    string
	SamplePassword string
	ToastDuration  time.Duration
	DefaultAPIKey  APIKeyForm
}

// Session is the state of one browser's playground. Each screen owns its own
// form record; only the token pair and the loaded events are shared.
type Session struct {
	ID string

	api      API
	settings Settings
	now      func() time.Time
	toast    *toast.Notifier

	mu        sync.Mutex
	tab       Tab
	login     LoginForm
	register  RegisterForm
	event     EventForm
	apiKey    APIKeyForm
	tokens    nimbus.TokenPair
	events    []nimbus.Event
	responses map[Tab]*ResponseView
	lastSeen  time.Time
}

func NewSession(id string, api API, settings Settings) *Session {
	return &Session{
		ID:        id,
		api:       api,
		settings:  settings,
		now:       time.Now,
		toast:     toast.NewNotifier(settings.ToastDuration),
		tab:       TabLogin,
		event:     EventForm{Mode: AuthHMAC},
		apiKey:    settings.DefaultAPIKey,
		responses: map[Tab]*ResponseView{},
		lastSeen:  time.Now(),
	}
}

const networkErrorBody = "{\n  \"detail\": \"Network error\"\n}"

// TabView describes one navigation button.
type TabView struct {
	Tab    Tab
	Label  string
	Active bool
	Locked bool
}

// View is a point-in-time copy of the session for rendering.
type View struct {
	ID            string
	Tab           Tab
	Tabs          []TabView
	Login         LoginForm
	Register      RegisterForm
	Event         EventForm
	APIKey        APIKeyForm
	Authenticated bool
	AccessToken   string
	HasRefresh    bool
	Token         *auth.TokenInfo
	TokenExpired  bool
	Events        []nimbus.Event
	Responses     map[Tab]*ResponseView
	Toast         toast.Toast
	ProjectID     string
	ListLimit     int
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	authed := s.tokens.AccessToken != ""
	v := View{
		ID:            s.ID,
		Tab:           s.tab,
		Login:         s.login,
		Register:      s.register,
		Event:         s.event,
		APIKey:        s.apiKey,
		Authenticated: authed,
		AccessToken:   s.tokens.AccessToken,
		HasRefresh:    s.tokens.RefreshToken != "",
		Events:        append([]nimbus.Event(nil), s.events...),
		Responses:     make(map[Tab]*ResponseView, len(s.responses)),
		Toast:         s.toast.Current(),
		ProjectID:     s.settings.ProjectID,
		ListLimit:     s.settings.ListLimit,
	}
	for _, t := range tabOrder {
		v.Tabs = append(v.Tabs, TabView{
			Tab:    t.tab,
			Label:  t.label,
			Active: t.tab == s.tab,
			Locked: t.tab.needsToken() && !authed,
		})
	}
	for tab, r := range s.responses {
		copied := *r
		v.Responses[tab] = &copied
	}
	if authed {
		if info, err := auth.Inspect(s.tokens.AccessToken); err == nil {
			v.Token = info
			v.TokenExpired = info.Expired(s.now())
		}
	}
	return v
}

func (s *Session) SetLoginForm(f LoginForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = f
}

func (s *Session) SetRegisterForm(f RegisterForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.register = f
}

func (s *Session) SetEventForm(f EventForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Mode != AuthJWT {
		f.Mode = AuthHMAC
	}
	s.event = f
}

func (s *Session) SetAPIKeyForm(f APIKeyForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = f
}

func (s *Session) DismissToast() {
	s.toast.Dismiss()
}

// Close releases the session's timers.
func (s *Session) Close() {
	s.toast.Stop()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) recordLocked(tab Tab, resp *nimbus.Response, err error) {
	if resp == nil {
		if err == nil {
			delete(s.responses, tab)
			return
		}
		s.responses[tab] = &ResponseView{Body: networkErrorBody}
		return
	}
	s.responses[tab] = &ResponseView{
		StatusCode: resp.StatusCode,
		Body:       resp.Pretty(),
		RequestID:  resp.RequestID,
		Elapsed:    resp.Elapsed,
	}
}
