package client

import (
	"errors"
	"fmt"
)

// ErrSmartschool is matched by every error this package produces on purpose.
var ErrSmartschool = errors.New("smartschool")

var (
	// ErrConfiguration means the session cannot work as configured, e.g. it
	// has no credentials. Never retried.
	ErrConfiguration = fmt.Errorf("%w: configuration error", ErrSmartschool)
	// ErrAuthentication covers an exhausted login budget and unusable 2FA.
	ErrAuthentication = fmt.Errorf("%w: authentication error", ErrSmartschool)
	// ErrNoSuchElement is returned by Get when the response holds no record.
	ErrNoSuchElement = fmt.Errorf("%w: no such element", ErrSmartschool)
)

// DownloadError is returned when the portal answers a data request with a
// non-2xx status.
type DownloadError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("smartschool: download error: %s %s returned %s", e.Method, e.URL, e.Status)
}

func (e *DownloadError) Is(target error) bool {
	return target == ErrSmartschool
}

func newDownloadError(resp *Response) *DownloadError {
	method := ""
	if resp.Request != nil {
		method = resp.Request.Method
	}
	return &DownloadError{
		Method:     method,
		URL:        resp.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

// JSONError means a response arrived but did not hold the expected JSON.
type JSONError struct {
	URL string
	Err error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("smartschool: invalid json from %s: %v", e.URL, e.Err)
}

func (e *JSONError) Unwrap() error { return e.Err }

func (e *JSONError) Is(target error) bool {
	return target == ErrSmartschool
}

// ParsingError means an XML or HTML response did not have the expected shape.
type ParsingError struct {
	What string
	Err  error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("smartschool: failed to parse %s: %v", e.What, e.Err)
}

func (e *ParsingError) Unwrap() error { return e.Err }

func (e *ParsingError) Is(target error) bool {
	return target == ErrSmartschool
}
