package playground

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"playground/internal/engine/nimbus"
	"playground/internal/pkg/validator"
)

// sampleTimeFormat renders like JavaScript's Date.toISOString.
const sampleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var ErrNoSample = errors.New("no sample for this screen")

// message picks what the toast says for a failed call: the backend's detail
// when there is one, otherwise fallback.
func message(err error, fallback string) string {
	if d := nimbus.ErrorDetail(err); d != "" {
		return d
	}
	return fallback
}

func (s *Session) fail(action string, err error, text string) error {
	log.Debug().Err(err).Str("session", s.ID).Str("action", action).Msg("playground action failed")
	s.toast.Error(text)
	return err
}

func (s *Session) SelectTab(tab Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tab.needsToken() && s.tokens.AccessToken == "" {
		s.toast.Error(validator.ErrTokenRequired.Error())
		return validator.ErrTokenRequired
	}
	s.tab = tab
	return nil
}

// FillSample pre-fills the form of the given screen with demo values.
func (s *Session) FillSample(tab Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tab {
	case TabLogin:
		s.login = LoginForm{Email: s.settings.SampleEmail, Password: s.settings.SamplePassword}
	case TabUser:
		s.register = RegisterForm{Email: s.settings.SampleEmail, Password: s.settings.SamplePassword}
	case TabEvent:
		mode := s.event.Mode
		if mode == "" {
			mode = AuthHMAC
		}
		s.event = EventForm{
			Name: "page_view",
			TS:   s.now().UTC().Format(sampleTimeFormat),
			Page: "/demo",
			Mode: mode,
		}
		if s.apiKey.ID == "" && s.apiKey.Secret == "" {
			s.apiKey = s.settings.DefaultAPIKey
		}
	default:
		return ErrNoSample
	}
	return nil
}

func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	form := s.login
	s.mu.Unlock()

	if err := validator.Credentials(form.Email, form.Password); err != nil {
		return s.fail("login", err, err.Error())
	}

	pair, resp, err := s.api.Login(ctx, nimbus.Credentials{Email: form.Email, Password: form.Password})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(TabLogin, resp, err)
	if err != nil {
		return s.fail("login", err, message(err, "Login failed"))
	}
	s.tokens = *pair
	s.toast.Success("Success! JWT acquired.")
	return nil
}

func (s *Session) Register(ctx context.Context) error {
	s.mu.Lock()
	form := s.register
	s.mu.Unlock()

	if err := validator.Credentials(form.Email, form.Password); err != nil {
		return s.fail("register", err, err.Error())
	}

	resp, err := s.api.Register(ctx, nimbus.Credentials{Email: form.Email, Password: form.Password})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(TabUser, resp, err)
	if err != nil {
		return s.fail("register", err, message(err, "Error"))
	}
	s.toast.Success("User created: " + form.Email)
	return nil
}

// Refresh trades the held refresh token for a new pair. The old refresh
// token is kept when the server does not rotate it.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.tokens.RefreshToken
	s.mu.Unlock()

	if err := validator.RefreshToken(refresh); err != nil {
		return s.fail("refresh", err, err.Error())
	}

	pair, resp, err := s.api.Refresh(ctx, refresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(TabLogin, resp, err)
	if err != nil {
		return s.fail("refresh", err, message(err, "Refresh failed"))
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refresh
	}
	s.tokens = *pair
	s.toast.Success("Token refreshed")
	return nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nimbus.TokenPair{}
	s.events = nil
	delete(s.responses, TabList)
	if s.tab.needsToken() {
		s.tab = TabLogin
	}
	s.toast.Success("Logged out")
}

func (s *Session) SendEvent(ctx context.Context) error {
	s.mu.Lock()
	form := s.event
	key := s.apiKey
	token := s.tokens.AccessToken
	projectID := s.settings.ProjectID
	s.mu.Unlock()

	switch form.Mode {
	case AuthJWT:
		if err := validator.Token(token); err != nil {
			return s.fail("send_event", err, err.Error())
		}
	default:
		if err := validator.APIKey(key.ID, key.Secret); err != nil {
			return s.fail("send_event", err, err.Error())
		}
	}
	if err := validator.Event(form.Name, form.TS, form.Page); err != nil {
		return s.fail("send_event", err, err.Error())
	}

	in := nimbus.IngestRequest{
		ProjectID: projectID,
		Events: []nimbus.EventPayload{{
			Name:  form.Name,
			TS:    form.TS,
			Props: nimbus.EventProps{Page: form.Page},
		}},
	}

	var (
		resp    *nimbus.Response
		err     error
		success string
	)
	if form.Mode == AuthJWT {
		resp, err = s.api.IngestWithToken(ctx, token, in)
		success = "Event sent! (JWT)"
	} else {
		resp, err = s.api.IngestSigned(ctx, nimbus.APIKey{ID: key.ID, Secret: key.Secret}, in)
		success = "Event sent! (HMAC)"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(TabEvent, resp, err)
	if err != nil {
		return s.fail("send_event", err, message(err, "Error"))
	}
	s.toast.Success(success)
	return nil
}

func (s *Session) ListEvents(ctx context.Context) error {
	s.mu.Lock()
	token := s.tokens.AccessToken
	q := nimbus.ListQuery{ProjectID: s.settings.ProjectID, Limit: s.settings.ListLimit}
	s.mu.Unlock()

	if err := validator.Token(token); err != nil {
		return s.fail("list_events", err, err.Error())
	}

	events, resp, err := s.api.ListEvents(ctx, token, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(TabList, resp, err)
	if err != nil {
		s.events = nil
		return s.fail("list_events", err, message(err, "Error"))
	}
	s.events = events
	s.toast.Success("Events loaded")
	return nil
}
