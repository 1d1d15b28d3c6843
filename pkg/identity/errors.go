package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNetwork wraps failures where no response was received
var ErrNetwork = errors.New("identity: network error")

// APIError is a non-2xx response from the identity service
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// extractDetail reads the "detail" field of an error body. It is either a
// string or a list of validation entries whose msg fields are joined.
// fallback is used when the body has no usable detail.
func extractDetail(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		if text == "" {
			return fallback
		}
		return text
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
	}

	return fallback
}
