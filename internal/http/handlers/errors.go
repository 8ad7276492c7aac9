package handlers

// Stable error codes carried in ErrorResponse.Code. Clients branch on these,
// not on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	// Written by the rate limiter middleware, listed for clients.
	ErrCodeRateLimited = "rate_limited"

	// Digest history:
	ErrCodeListFailed = "list_failed"
	ErrCodeGetFailed  = "get_failed"
)
