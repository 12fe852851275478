package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error classes. An *APIError matches the class for its status code via
// errors.Is; transport failures wrap ErrTransport.
var (
	ErrTransport    = errors.New("transport failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrServer       = errors.New("server error")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server-provided message, if one could be extracted.
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is maps the status code onto the error classes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Message returns the server's error message for err, or fallback when the
// server gave none (including transport failures).
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// ExtractMessage pulls a human-readable message out of an error body. The
// shapes are tried in order: a plain string, .message, .error (string or
// {message}), an errors array, then a flat {field: message} map.
func ExtractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return trimmed
	}

	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		return joinEntries(v)
	case map[string]any:
		return messageFromObject(v)
	}
	return ""
}

func messageFromObject(obj map[string]any) string {
	if s := stringField(obj, "message"); s != "" {
		return s
	}
	switch e := obj["error"].(type) {
	case string:
		if strings.TrimSpace(e) != "" {
			return strings.TrimSpace(e)
		}
	case map[string]any:
		if s := stringField(e, "message"); s != "" {
			return s
		}
	}
	if list, ok := obj["errors"].([]any); ok {
		if s := joinEntries(list); s != "" {
			return s
		}
	}
	return fieldMap(obj)
}

// joinEntries joins an errors array whose entries are strings or objects
// with defaultMessage or message.
func joinEntries(list []any) string {
	parts := make([]string, 0, len(list))
	for _, entry := range list {
		var s string
		switch e := entry.(type) {
		case string:
			s = e
		case map[string]any:
			s = stringField(e, "defaultMessage")
			if s == "" {
				s = stringField(e, "message")
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// fieldMap renders {field: message} maps. Every value must be a string,
// otherwise the object is not a field map.
func fieldMap(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if _, ok := v.(string); !ok {
			return ""
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if msg := strings.TrimSpace(obj[k].(string)); msg != "" {
			parts = append(parts, k+": "+msg)
		}
	}
	return strings.Join(parts, ", ")
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}
