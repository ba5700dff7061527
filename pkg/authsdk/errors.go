package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a failed API call as the service reported it.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is matches another *APIError by code, so callers can compare against the
// predefined values below.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

var (
	ErrValidation           = &APIError{StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	ErrUnauthorized         = &APIError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrTokenExpired         = &APIError{StatusCode: http.StatusUnauthorized, Code: "TOKEN_EXPIRED"}
	ErrTokenInvalid         = &APIError{StatusCode: http.StatusUnauthorized, Code: "INVALID_TOKEN"}
	ErrNotFound             = &APIError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrEmailExists          = &APIError{StatusCode: http.StatusConflict, Code: "EMAIL_EXISTS"}
	ErrEmailAlreadyVerified = &APIError{StatusCode: http.StatusBadRequest, Code: "EMAIL_ALREADY_VERIFIED"}
	ErrTooManyRequests      = &APIError{StatusCode: http.StatusTooManyRequests, Code: "TOO_MANY_REQUESTS"}
)

// parseErrorResponse builds an APIError from a non-success response. Bodies
// that are not an envelope still produce an error carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env Response[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       "HTTP_" + http.StatusText(resp.StatusCode),
		Message:    string(body),
	}
}
