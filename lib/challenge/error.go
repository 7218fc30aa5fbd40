package challenge

import "errors"

var (
	// ErrInvalidOwner is returned when a challenge is requested without a
	// usable requester identity.
	ErrInvalidOwner = errors.New("challenge: requester IP is missing or unknown")

	// ErrRateLimited is returned when a requester already holds the maximum
	// number of unconsumed challenges. The wrapped message names the limit
	// so clients know when to back off.
	ErrRateLimited = errors.New("challenge: too many outstanding challenges")

	// ErrNotFound is returned when a challenge does not exist, has expired,
	// or was already consumed. Callers cannot tell these apart on purpose.
	ErrNotFound = errors.New("challenge: not found")
)
