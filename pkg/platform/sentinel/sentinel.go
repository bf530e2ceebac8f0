package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// and the service layer translates them into coded application errors.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: a conditional write lost a race or hit a uniqueness constraint
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
