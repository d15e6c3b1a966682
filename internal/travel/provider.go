// Package travel resolves ordered address lists into travel time matrices.
package travel

import (
	"context"
	"errors"
)

// Unreachable marks origin/destination pairs with no usable route.
const Unreachable = 9999

// ErrUnavailable wraps transport or authorization failures from the live
// matrix service. The optimize call aborts on it; no partial matrix is
// ever returned.
var ErrUnavailable = errors.New("travel time service unavailable")

// Provider computes an N×N minute matrix for an ordered location list.
// matrix[i][j] is the drive time from locations[i] to locations[j]; the
// matrix is not guaranteed symmetric.
type Provider interface {
	Matrix(ctx context.Context, locations []string) ([][]int, error)
}
