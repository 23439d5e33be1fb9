package nimbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"playground/internal/engine/signing"
)

const (
	pathEvents = "/v1/events"
	pathHealth = "/health"
)

// IngestSigned submits events on the HMAC path. The request body is
// serialized once; those exact bytes are signed and sent.
func (c *Client) IngestSigned(ctx context.Context, key APIKey, in IngestRequest) (*Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("ingest: encode body: %w", err)
	}
	resp, err := c.do(ctx, request{
		op:     "ingest_hmac",
		method: http.MethodPost,
		path:   pathEvents,
		body:   body,
		prepare: func(req *http.Request) {
			signed := c.signer.Sign(req.Method, req.URL.Path, body, key.Secret)
			signing.Apply(req, key.ID, signed)
		},
	})
	if err != nil {
		return resp, err
	}
	c.finish("ingest_hmac", resp, nil)
	return resp, nil
}

// IngestWithToken submits events on the JWT path.
func (c *Client) IngestWithToken(ctx context.Context, token string, in IngestRequest) (*Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("ingest: encode body: %w", err)
	}
	resp, err := c.do(ctx, request{
		op:      "ingest_jwt",
		method:  http.MethodPost,
		path:    pathEvents,
		body:    body,
		prepare: bearer(token),
	})
	if err != nil {
		return resp, err
	}
	c.finish("ingest_jwt", resp, nil)
	return resp, nil
}

// ListEvents reads events for a project. The list is taken from "events",
// or from "items" for servers that page their results under that key.
func (c *Client) ListEvents(ctx context.Context, token string, q ListQuery) ([]Event, *Response, error) {
	query := url.Values{}
	query.Set("project_id", q.ProjectID)
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}
	for _, name := range q.Names {
		query.Add("name", name)
	}

	resp, err := c.do(ctx, request{
		op:      "list",
		method:  http.MethodGet,
		path:    pathEvents,
		query:   query,
		prepare: bearer(token),
	})
	if err != nil {
		return nil, resp, err
	}

	var page struct {
		Events []Event `json:"events"`
		Items  []Event `json:"items"`
	}
	_, hasEvents := resp.Body["events"].([]interface{})
	_, hasItems := resp.Body["items"].([]interface{})
	if (!hasEvents && !hasItems) || json.Unmarshal(resp.Raw, &page) != nil {
		err := &APIError{Op: "list", StatusCode: resp.StatusCode, Detail: resp.Detail(), Response: resp, cause: ErrUnexpectedBody}
		c.finish("list", resp, err)
		return nil, resp, err
	}
	c.finish("list", resp, nil)

	events := page.Events
	if !hasEvents {
		events = page.Items
	}
	if events == nil {
		events = []Event{}
	}
	return events, resp, nil
}

// Health calls the backend's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Response, error) {
	resp, err := c.do(ctx, request{op: "health", method: http.MethodGet, path: pathHealth})
	if err != nil {
		return resp, err
	}
	c.finish("health", resp, nil)
	return resp, nil
}
