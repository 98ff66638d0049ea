package models

import "errors"

// Error kinds for the engine. Callers discriminate with errors.Is.
var (
	// ErrProvider marks a failed or unparseable generation call. The pool
	// absorbs it unless inventory is genuinely exhausted.
	ErrProvider = errors.New("question provider failure")

	// ErrValidation marks a generated item that failed schema checks. It is
	// dropped individually; sibling items stay usable.
	ErrValidation = errors.New("generated question failed validation")

	// ErrStorage marks unavailable persistence. Fatal to the current
	// operation; no in-memory fallback.
	ErrStorage = errors.New("storage failure")
)
