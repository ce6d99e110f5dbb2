package auth

import "errors"

var (
	// ErrAuthenticationFailed indicates the provider exchange did not
	// produce a trustworthy session.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInputRequired indicates the provider needs challenge input that
	// the request did not carry.
	ErrInputRequired = errors.New("challenge input required")
	// ErrRelayTokenParse indicates the federated relay token could not be
	// parsed after the anti-CSRF retry.
	ErrRelayTokenParse = errors.New("relay token parse failed")
	// ErrNoProvider indicates no registered provider matches the request.
	ErrNoProvider = errors.New("no provider for request")
	// ErrRetryLimitExceeded indicates the offline provider exhausted its
	// configured retry budget and purged the stored credentials.
	ErrRetryLimitExceeded = errors.New("offline retry limit exceeded")
	// ErrSessionInvalid indicates an operation that requires a currently
	// valid session.
	ErrSessionInvalid = errors.New("session not valid")
)
