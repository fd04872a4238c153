package ports

import "errors"

// ErrNotFound is returned by port lookups/mutations for an unknown ID.
var ErrNotFound = errors.New("ports: not found")
