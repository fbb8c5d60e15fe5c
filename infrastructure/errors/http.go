// Package errors turns non-2xx upstream responses into typed errors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// HTTPError is a failed upstream call.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, strings.TrimSpace(strings.TrimPrefix(e.Status, fmt.Sprint(e.StatusCode))))
}

// ParseHTTPError returns nil for 1xx-3xx responses. Otherwise it reads
// (a prefix of) the body and extracts a message from the common JSON
// error shapes: {"error": "..."}, {"message": "..."}, an "errors" array of
// strings, or a JSON:API "errors" array of objects. Anything else is kept
// verbatim as the message.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    fmt.Sprintf("read error body: %v", err),
		}
	}

	body := strings.TrimSpace(string(raw))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		Message:    extractMessage(raw, body),
	}
}

func extractMessage(raw []byte, fallback string) string {
	var payload struct {
		Error   json.RawMessage   `json:"error"`
		Message string            `json:"message"`
		Errors  []json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return fallback
	}

	var msg string
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &msg) == nil && msg != "" {
		return msg
	}
	if payload.Message != "" {
		return payload.Message
	}

	details := make([]string, 0, len(payload.Errors))
	for _, item := range payload.Errors {
		var s string
		if json.Unmarshal(item, &s) == nil {
			details = append(details, s)
			continue
		}
		var obj struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(item, &obj) == nil && obj.Title != "" {
			if obj.Detail != "" {
				details = append(details, obj.Title+": "+obj.Detail)
			} else {
				details = append(details, obj.Title)
			}
		}
	}
	if len(details) > 0 {
		return strings.Join(details, "; ")
	}
	return fallback
}

// StatusCode reports the status of the first HTTPError in err's chain.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

// IsStatus reports whether err wraps an HTTPError with the given status.
func IsStatus(err error, code int) bool {
	got, ok := StatusCode(err)
	return ok && got == code
}
