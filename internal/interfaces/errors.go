package interfaces

import "errors"

// ErrNotFound marks a missing group, item, or archive. Callers test with
// errors.Is; operations documented as idempotent swallow it instead.
var ErrNotFound = errors.New("not found")
