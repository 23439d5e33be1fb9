// Package nimbustest runs an in-process stand-in for the Nimbus API so the
// client, the playground and the CLI can be exercised end to end in tests.
package nimbustest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"playground/internal/engine/nimbus"
	"playground/internal/engine/signing"
)

const (
	KeyID     = "local-key-id"
	KeySecret = "local-super-secret"
)

type Server struct {
	*httptest.Server

	JWTSecret []byte
	Now       func() time.Time

	mu        sync.Mutex
	users     map[string]string
	events    map[string][]nimbus.Event
	hits      map[string]int
	overrides map[string]http.HandlerFunc
	lastReq   map[string]*RecordedRequest
}

// RecordedRequest is a copy of what the server last saw on a route.
type RecordedRequest struct {
	Header http.Header
	Query  string
	Body   []byte
}

func NewServer() *Server {
	s := &Server{
		JWTSecret: []byte("change-me-local"),
		Now:       time.Now,
		users:     map[string]string{},
		events:    map[string][]nimbus.Event{},
		hits:      map[string]int{},
		overrides: map[string]http.HandlerFunc{},
		lastReq:   map[string]*RecordedRequest{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Handle replaces the built-in behaviour of one route, e.g. Handle("POST /v1/auth/login", h).
func (s *Server) Handle(route string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[route] = h
}

// Hits is how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) LastRequest(route string) *RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq[route]
}

func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

func (s *Server) Events(projectID string) []nimbus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nimbus.Event(nil), s.events[projectID]...)
}

// IssueToken mints a token the server will accept.
func (s *Server) IssueToken(subject, typ string, ttl time.Duration) string {
	now := s.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"typ": typ,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": "Nimbus API",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	route := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.hits[route]++
	s.lastReq[route] = &RecordedRequest{Header: r.Header.Clone(), Query: r.URL.RawQuery, Body: body}
	override := s.overrides[route]
	s.mu.Unlock()

	if override != nil {
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		override(w, r)
		return
	}

	switch route {
	case "POST /v1/auth/register":
		s.register(w, body)
	case "POST /v1/auth/login":
		s.login(w, body)
	case "POST /v1/auth/refresh":
		s.refresh(w, r)
	case "POST /v1/events":
		s.ingest(w, r, body)
	case "GET /v1/events":
		s.list(w, r)
	case "GET /health":
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		Detail(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) register(w http.ResponseWriter, body []byte) {
	var creds nimbus.Credentials
	if err := json.Unmarshal(body, &creds); err != nil || creds.Email == "" || creds.Password == "" {
		Detail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}
	s.mu.Lock()
	_, exists := s.users[creds.Email]
	if !exists {
		s.users[creds.Email] = creds.Password
	}
	s.mu.Unlock()
	if exists {
		Detail(w, http.StatusConflict, "User already exists")
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"email": creds.Email, "status": "created"})
}

func (s *Server) login(w http.ResponseWriter, body []byte) {
	var creds nimbus.Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		Detail(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	s.mu.Lock()
	password, ok := s.users[creds.Email]
	s.mu.Unlock()
	if !ok || password != creds.Password {
		Detail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.writeTokens(w, creds.Email)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.bearerClaims(w, r, "refresh")
	if !ok {
		return
	}
	sub, _ := claims.GetSubject()
	s.writeTokens(w, sub)
}

func (s *Server) writeTokens(w http.ResponseWriter, subject string) {
	WriteJSON(w, http.StatusOK, nimbus.TokenPair{
		AccessToken:  s.IssueToken(subject, "access", 15*time.Minute),
		RefreshToken: s.IssueToken(subject, "refresh", 24*time.Hour),
		TokenType:    "bearer",
	})
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, body []byte) {
	if r.Header.Get("Authorization") != "" {
		if _, ok := s.bearerClaims(w, r, "access"); !ok {
			return
		}
	} else {
		kid, headers := signing.FromRequest(r)
		if kid == "" || headers.Timestamp == "" || headers.Signature == "" {
			Detail(w, http.StatusUnauthorized, "Missing HMAC headers")
			return
		}
		if kid != KeyID {
			Detail(w, http.StatusUnauthorized, "Unknown API key id")
			return
		}
		switch err := signing.Verify(r.Method, r.URL.Path, body, KeySecret, headers, s.Now(), signing.DefaultMaxSkew); err {
		case nil:
		case signing.ErrStaleTimestamp:
			Detail(w, http.StatusUnauthorized, "Stale X-Api-Timestamp")
			return
		case signing.ErrBadTimestamp:
			Detail(w, http.StatusUnauthorized, "Bad X-Api-Timestamp")
			return
		default:
			Detail(w, http.StatusUnauthorized, "Bad signature")
			return
		}
	}

	var in nimbus.IngestRequest
	if err := json.Unmarshal(body, &in); err != nil || in.ProjectID == "" {
		Detail(w, http.StatusUnprocessableEntity, "project_id and events are required")
		return
	}

	s.mu.Lock()
	for _, e := range in.Events {
		s.events[in.ProjectID] = append(s.events[in.ProjectID], nimbus.Event{
			ID:    strconv.Itoa(len(s.events[in.ProjectID]) + 1),
			Name:  e.Name,
			TS:    e.TS,
			Props: map[string]interface{}{"page": e.Props.Page},
		})
	}
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]int{"accepted": len(in.Events)})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.bearerClaims(w, r, "access"); !ok {
		return
	}
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]interface{}{{"loc": []string{"query", "project_id"}, "msg": "field required"}},
		})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	events := s.Events(projectID)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []nimbus.Event{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) bearerClaims(w http.ResponseWriter, r *http.Request, typ string) (jwt.MapClaims, bool) {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || raw == "" {
		Detail(w, http.StatusUnauthorized, "Missing token")
		return nil, false
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.Now))
	if err != nil {
		Detail(w, http.StatusUnauthorized, "Invalid token")
		return nil, false
	}
	if claims["typ"] != typ {
		Detail(w, http.StatusUnauthorized, "Wrong token type")
		return nil, false
	}
	return claims, true
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Detail writes an error body in the backend's {"detail": "..."} shape.
func Detail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, map[string]string{"detail": detail})
}
