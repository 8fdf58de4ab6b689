package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorKind classifies provider failures so handlers can pick a user-facing
// message without parsing provider payloads.
type ErrorKind string

const (
	KindUnknown    ErrorKind = "unknown"
	KindQuota      ErrorKind = "quota"
	KindModeration ErrorKind = "moderation"
	KindBadRequest ErrorKind = "bad_request"
)

// ProviderError wraps a failed call to an external AI provider.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Provider, e.Op, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf extracts the classification from any error chain.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Kind == "" {
			return KindUnknown
		}
		return pe.Kind
	}
	return KindUnknown
}

func providerErrorFromResponse(provider, op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := string(body)
	var decoded struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &decoded) == nil && decoded.Error.Message != "" {
		msg = decoded.Error.Message
	}

	kind := KindUnknown
	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		decoded.Error.Code == "insufficient_quota":
		kind = KindQuota
	case resp.StatusCode == http.StatusForbidden:
		kind = KindModeration
	case resp.StatusCode == http.StatusBadRequest:
		kind = KindBadRequest
	}

	return &ProviderError{
		Provider: provider,
		Op:       op,
		Status:   resp.StatusCode,
		Kind:     kind,
		Message:  msg,
	}
}
