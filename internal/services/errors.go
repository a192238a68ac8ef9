package services

import "errors"

// Domain errors. Handlers map these to HTTP status codes with errors.Is;
// everything else surfaces as a 500.
var (
	// validation, rejected before any store interaction
	ErrInvalidCode   = errors.New("invalid code")
	ErrURLRequired   = errors.New("URL required")
	ErrNameRequired  = errors.New("name required")
	ErrTextRequired  = errors.New("text required")
	ErrTokenRequired = errors.New("token required")
	ErrBadStatus     = errors.New("status must be pending or done")
	ErrBadMode       = errors.New("mode must be move_to_inbox or delete_all")

	// precondition violations, rejected with zero side effects
	ErrAlreadyPaired = errors.New("you already have a couple")
	ErrCreatorPaired = errors.New("creator already has a couple")
	ErrOwnCode       = errors.New("cannot join your own code")
	ErrCodeUsed      = errors.New("code already used")
	ErrCodeExpired   = errors.New("code expired")
	ErrCodeNotFound  = errors.New("code does not exist")
	ErrNoCouple      = errors.New("you do not have a couple yet")
	ErrNotFound      = errors.New("not found")

	// transient, surfaced only after exhausting internal retries
	ErrCodeGeneration = errors.New("could not generate a code, retry")
)
