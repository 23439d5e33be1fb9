package nimbus

import (
	"bytes"
	"encoding/json"
	"time"
)

// Response is what came back from the API, kept raw so it can be shown as-is.
type Response struct {
	StatusCode int
	// Body is the JSON object in the response, or empty when the body was
	// missing, malformed or not an object.
	Body      map[string]interface{}
	Raw       []byte
	RequestID string
	Elapsed   time.Duration
}

func newResponse(status int, raw []byte) *Response {
	r := &Response{StatusCode: status, Raw: raw, Body: map[string]interface{}{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return r
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		r.Body = obj
	}
	return r
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// String returns the string field key of the body, "" if absent or not a string.
func (r *Response) String(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r.Body[key].(string)
	return s
}

// Detail is the backend's error message. Structured details (validation
// error lists) are rendered as compact JSON.
func (r *Response) Detail() string {
	if r == nil {
		return ""
	}
	switch v := r.Body["detail"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Pretty renders the body indented for display. Non-JSON bodies are returned verbatim.
func (r *Response) Pretty() string {
	if r == nil {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}
	return out.String()
}
