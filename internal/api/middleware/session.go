package middleware

import (
	"context"
	"net/http"

	apiContext "playground/internal/api/context"
	"playground/internal/engine/playground"
)

type SessionMiddleware struct {
	store  *playground.Store
	cookie string
	secure bool
}

func NewSessionMiddleware(store *playground.Store, cookieName string, secure bool) *SessionMiddleware {
	return &SessionMiddleware{store: store, cookie: cookieName, secure: secure}
}

// Lookup returns the live session named by the request's cookie, if any.
// It never starts a session.
func (m *SessionMiddleware) Lookup(r *http.Request) (*playground.Session, bool) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return m.store.Get(c.Value)
}

// Handle attaches the caller's playground session to the request, starting a
// new one when the cookie is missing or its session has expired.
func (m *SessionMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.Lookup(r)
		if !ok {
			sess = m.store.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), apiContext.Session, sess)
		next(w, r.WithContext(ctx))
	}
}

// SessionFrom returns the session stored by SessionMiddleware, or nil.
func SessionFrom(ctx context.Context) *playground.Session {
	sess, _ := ctx.Value(apiContext.Session).(*playground.Session)
	return sess
}
