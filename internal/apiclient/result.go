package apiclient

import "encoding/json"

// Result is the uniform shape every domain method returns. Exactly one of
// Data and Error is meaningful: Error is empty on success, and on failure
// it carries a user-displayable message derived from the richest remote
// message available.
type Result[T any] struct {
	Data  *T
	Error string
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Error == ""
}

func success[T any](data *T) Result[T] {
	return Result[T]{Data: data}
}

func failure[T any](message string) Result[T] {
	return Result[T]{Error: message}
}

// remoteEnvelope captures the fields common to collaborator responses.
type remoteEnvelope struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// remoteMessage extracts a user-displayable message from a response body,
// preferring the remote-supplied message over the fallback.
func remoteMessage(body []byte, fallback string) string {
	var env remoteEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return fallback
}

// is2xx reports whether status is a success status code.
func is2xx(status int) bool {
	return status >= 200 && status < 300
}
