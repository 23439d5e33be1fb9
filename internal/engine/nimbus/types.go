package nimbus

import "fmt"

// Credentials is the body of both register and login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// APIKey identifies the shared secret used for HMAC ingestion.
type APIKey struct {
	ID     string
	Secret string
}

type EventProps struct {
	Page string `json:"page"`
}

// EventPayload is one event as submitted for ingestion.
type EventPayload struct {
	Name  string     `json:"name"`
	TS    string     `json:"ts"`
	Props EventProps `json:"props"`
}

type IngestRequest struct {
	ProjectID string         `json:"project_id"`
	Events    []EventPayload `json:"events"`
}

// Event is one event as returned by the list endpoint. Servers may attach
// more fields than were ingested, so props is kept open.
type Event struct {
	ID     string                 `json:"id,omitempty"`
	Name   string                 `json:"name"`
	TS     string                 `json:"ts"`
	UserID string                 `json:"user_id,omitempty"`
	Props  map[string]interface{} `json:"props,omitempty"`
}

func (e Event) Page() string {
	if e.Props == nil {
		return ""
	}
	switch v := e.Props["page"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type ListQuery struct {
	ProjectID string
	Limit     int
	Offset    int
	Names     []string
}
