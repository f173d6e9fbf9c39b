package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Operation is a named request against the remote store. Document is a fixed
// operation body; all caller input travels through Variables, never through
// string interpolation into the document itself.
type Operation struct {
	Name      string
	Document  string
	Variables map[string]any
}

// APIError is one entry of the application-level errors payload.
type APIError struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
	Code    string   `json:"errorType,omitempty"`
}

func (e APIError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(e.Path, "."), e.Message)
	}
	return e.Message
}

// Result is a structurally successful response. A non-empty Errors slice
// means the operation failed at the application layer even though transport
// succeeded; callers outside the fire-and-forget path must check Err.
type Result struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []APIError                 `json:"errors,omitempty"`
}

// Err returns an error describing the application-level errors payload, or
// nil when the response carries none.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return eris.New("gateway: response errors: " + strings.Join(msgs, "; "))
}

// Decode unmarshals one named field of the response data into out.
func (r *Result) Decode(field string, out any) error {
	raw, ok := r.Data[field]
	if !ok {
		return eris.Errorf("gateway: response missing field %q", field)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("gateway: decode field %q", field))
	}
	return nil
}
