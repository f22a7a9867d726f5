package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and provider adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist in the store
//   - ErrConflict: an overlapping or competing resource already exists
//   - ErrAlreadyUsed: a uniqueness key was already recorded (call_id, event hash)
//   - ErrUnavailable: backing service temporarily unavailable (lock, store)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
