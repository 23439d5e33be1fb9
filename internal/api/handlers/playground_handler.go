package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "playground/internal/api/context"
	"playground/internal/api/middleware"
	"playground/internal/api/web"
	"playground/internal/engine/playground"
	"playground/internal/pkg/errors"
)

type PlaygroundHandler struct {
	renderer      *web.Renderer
	baseURL       string
	toastDuration time.Duration
}

func NewPlaygroundHandler(renderer *web.Renderer, baseURL string, toastDuration time.Duration) *PlaygroundHandler {
	return &PlaygroundHandler{
		renderer:      renderer,
		baseURL:       baseURL,
		toastDuration: toastDuration,
	}
}

type pageData struct {
	View          playground.View
	BaseURL       string
	ToastDuration time.Duration

	UserResponse  *playground.ResponseView
	LoginResponse *playground.ResponseView
	EventResponse *playground.ResponseView
	ListResponse  *playground.ResponseView
}

func (h *PlaygroundHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	view := sess.Snapshot()

	data := pageData{
		View:          view,
		BaseURL:       h.baseURL,
		ToastDuration: h.toastDuration,
		UserResponse:  view.Responses[playground.TabUser],
		LoginResponse: view.Responses[playground.TabLogin],
		EventResponse: view.Responses[playground.TabEvent],
		ListResponse:  view.Responses[playground.TabList],
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, "page", data); err != nil {
		log.Error().Err(err).
			Str("session", sess.ID).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Msg("render page")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to render page", nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

func (h *PlaygroundHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := playground.ParseTab(param(r, "tab"))
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown tab", nil)
		return
	}
	// A locked tab leaves the session where it was and raises a toast.
	_ = middleware.SessionFrom(r.Context()).SelectTab(tab)
	backToPage(w, r)
}

func (h *PlaygroundHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	sess := middleware.SessionFrom(r.Context())
	sess.SetLoginForm(playground.LoginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	})
	_ = sess.Login(r.Context())
	backToPage(w, r)
}

func (h *PlaygroundHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	sess := middleware.SessionFrom(r.Context())
	sess.SetRegisterForm(playground.RegisterForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	})
	_ = sess.Register(r.Context())
	backToPage(w, r)
}

func (h *PlaygroundHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	_ = middleware.SessionFrom(r.Context()).Refresh(r.Context())
	backToPage(w, r)
}

func (h *PlaygroundHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.SessionFrom(r.Context()).Logout()
	backToPage(w, r)
}

func (h *PlaygroundHandler) SendEvent(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	sess := middleware.SessionFrom(r.Context())
	sess.SetEventForm(playground.EventForm{
		Name: r.PostFormValue("name"),
		TS:   r.PostFormValue("ts"),
		Page: r.PostFormValue("page"),
		Mode: playground.AuthMode(r.PostFormValue("mode")),
	})
	if r.PostForm.Has("key_id") || r.PostForm.Has("key_secret") {
		sess.SetAPIKeyForm(playground.APIKeyForm{
			ID:     r.PostFormValue("key_id"),
			Secret: r.PostFormValue("key_secret"),
		})
	}
	_ = sess.SendEvent(r.Context())
	backToPage(w, r)
}

func (h *PlaygroundHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	_ = middleware.SessionFrom(r.Context()).ListEvents(r.Context())
	backToPage(w, r)
}

func (h *PlaygroundHandler) FillSample(w http.ResponseWriter, r *http.Request) {
	tab, ok := playground.ParseTab(param(r, "screen"))
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown screen", nil)
		return
	}
	if err := middleware.SessionFrom(r.Context()).FillSample(tab); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "No sample for this screen", nil)
		return
	}
	backToPage(w, r)
}

func (h *PlaygroundHandler) DismissToast(w http.ResponseWriter, r *http.Request) {
	middleware.SessionFrom(r.Context()).DismissToast()
	backToPage(w, r)
}

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid form body", nil)
		return false
	}
	return true
}

func backToPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
