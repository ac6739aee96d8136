package api

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned when the backend could not be reached.
var ErrBackendUnavailable = errors.New("api: backend unavailable")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
