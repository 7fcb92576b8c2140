package railway

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPError is returned when the Railway API answers with a non-2xx
// status. It supports errors.Is matching by status code and errors.As
// extraction.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error returns the formatted error string.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("railway: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is supports errors.Is matching by status code.
// ErrServer (500) matches any 5xx status code.
// All other sentinels require an exact status code match.
func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok {
		return false
	}
	if t.StatusCode == 500 && e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == t.StatusCode
}

// Sentinel errors for common HTTP error status codes.
var (
	ErrUnauthorized = &HTTPError{StatusCode: 401, Body: "unauthorized"}
	ErrForbidden    = &HTTPError{StatusCode: 403, Body: "forbidden"}
	ErrRateLimit    = &HTTPError{StatusCode: 429, Body: "rate limit exceeded"}
	ErrServer       = &HTTPError{StatusCode: 500, Body: "server error"}
)

// QueryError is returned when a 2xx response carries a populated
// GraphQL errors field. Callers treat it the same as a transport
// failure: log it and take zero data for the call.
type QueryError struct {
	Messages []string
}

// Error returns the formatted error string.
func (e *QueryError) Error() string {
	return "railway: query errors: " + strings.Join(e.Messages, "; ")
}

// maxErrorBody is the maximum number of bytes read from an error response body.
const maxErrorBody = 4096

// errorFromResponse creates an *HTTPError from a non-2xx HTTP response.
// It reads up to 4KB of the response body.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
