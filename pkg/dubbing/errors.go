// ABOUTME: Error type for non-success backend responses
// ABOUTME: Extracts the {"error": ...} message the backend returns
package dubbing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned when the backend answers with a non-2xx status
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// newAPIError builds an APIError from a response body
func newAPIError(op string, status int, body []byte) *APIError {
	var payload struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}

	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Detail != nil:
			msg = fmt.Sprint(payload.Detail)
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}

	return &APIError{Op: op, StatusCode: status, Message: msg}
}
