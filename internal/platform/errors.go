package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/michimani/gotwi"
)

const (
	// NotConfiguredMessage is reported by every posting call when credentials are missing
	NotConfiguredMessage = "X/Twitter client not configured. Please set up API credentials."

	authFailedMessage  = "Authentication failed. Check your X/Twitter API credentials."
	rateLimitedMessage = "Rate limit exceeded. Please try again later."
)

// ErrNotConfigured is returned by diagnostics when credentials are missing
var ErrNotConfigured = errors.New(NotConfiguredMessage)

// APIError is a non-2xx answer from the platform API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("platform API returned HTTP %d: %s", e.StatusCode, e.Message)
}

// fromGotwi turns gotwi's non-2xx error into an APIError. Other errors
// (transport, decoding) pass through unchanged.
func fromGotwi(err error) error {
	var gerr *gotwi.GotwiError
	if !errors.As(err, &gerr) || !gerr.OnAPI || gerr.StatusCode == 0 {
		return err
	}

	apiErr := &APIError{StatusCode: gerr.StatusCode}
	switch {
	case gerr.Detail != "":
		apiErr.Message = gerr.Detail
	case len(gerr.APIErrors) > 0 && gerr.APIErrors[0].Message != "":
		apiErr.Message = gerr.APIErrors[0].Message
	default:
		apiErr.Message = gerr.Title
	}
	return apiErr
}

// apiErrorBody covers the error shapes the upload endpoint answers with
type apiErrorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (b apiErrorBody) message() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case len(b.Errors) > 0 && b.Errors[0].Message != "":
		return b.Errors[0].Message
	default:
		return b.Title
	}
}

// describe turns a platform failure into the message shown to operators
func describe(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return authFailedMessage
		case http.StatusTooManyRequests:
			return rateLimitedMessage
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if err == nil {
		return "Failed to post tweet"
	}
	return err.Error()
}
