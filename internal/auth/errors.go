package auth

import (
	"errors"
	"fmt"
)

// ProviderError is returned when the identity provider answered but rejected
// the request (expired link, reused code, bad credentials). Any other error
// from a provider call is a fault.
type ProviderError struct {
	Status  int    // HTTP status of the provider response, 0 if unknown
	Code    string // machine-readable code, e.g. "otp_expired"
	Message string // human-readable message from the provider
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider: %s (%s)", e.Message, e.Code)
	}
	return "identity provider: " + e.Message
}

// AsProviderError unwraps err into a *ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
