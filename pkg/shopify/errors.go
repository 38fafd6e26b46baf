package shopify

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classify categorizes a response status code for observability.
func classify(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// TransportError reports a network-level failure (DNS, connect, timeout)
// before any HTTP status was received. Fatal to the current run.
type TransportError struct {
	Resource Resource
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("shopify %s: transport failure: %v", e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError reports a non-success HTTP status from the Shopify API,
// rate limiting (429) included. Fatal to the current run.
type APIError struct {
	Resource   Resource
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify %s: %s error (status %d): %s",
		e.Resource, classify(e.StatusCode), e.StatusCode, e.Status)
}

// Class returns the error classification for the status code.
func (e *APIError) Class() ErrorClass {
	return classify(e.StatusCode)
}

// DataShapeError reports an unexpected or malformed field in a remote record.
type DataShapeError struct {
	Resource Resource
	EntityID int64
	Field    string
	Err      error
}

func (e *DataShapeError) Error() string {
	if e.EntityID != 0 {
		return fmt.Sprintf("shopify %s %d: bad field %q: %v", e.Resource, e.EntityID, e.Field, e.Err)
	}
	return fmt.Sprintf("shopify %s: bad field %q: %v", e.Resource, e.Field, e.Err)
}

func (e *DataShapeError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err originated from the remote API rather than
// from local decoding or persistence.
func IsRemote(err error) bool {
	var apiErr *APIError
	var transportErr *TransportError
	return errors.As(err, &apiErr) || errors.As(err, &transportErr)
}
