package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrTimeout indicates a model call exceeded its bounded duration.
var ErrTimeout = errors.New("ai call timed out")

// ErrMalformedOutput indicates the model response could not be parsed
// against the expected schema.
var ErrMalformedOutput = errors.New("malformed model output")
