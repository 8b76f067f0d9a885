package domain

import "errors"

var (
	// ErrBadInput is returned when an inbound payload cannot be parsed.
	ErrBadInput = errors.New("malformed action payload")
	// ErrUnknownAction is returned for payloads with no known prefix.
	ErrUnknownAction = errors.New("unknown action")
	// ErrPageSetExpired indicates the cached result pages are gone.
	ErrPageSetExpired = errors.New("result pages no longer available")
	// ErrInvalidCatalog indicates the question catalog failed validation.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrCatalogNotFound indicates a catalog id is unknown to the backing store.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrUserNotFound is returned when an update targets an unknown user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned for admin-only operations requested by other users.
	ErrForbidden = errors.New("forbidden")
)
