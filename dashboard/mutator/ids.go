package mutator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	// DefaultIDSpace is the exclusive upper bound of random panel identifiers.
	DefaultIDSpace = 1_000_000
	// DefaultIDAttempts bounds the draws RandomIDs makes before giving up.
	DefaultIDAttempts = 64
)

// ErrIDSpaceExhausted is returned when no free identifier could be drawn.
var ErrIDSpaceExhausted = errors.New("no free panel identifier")

type (
	// IDAllocator issues panel identifiers. used holds the identifiers already
	// attached to the dashboard and those issued earlier in the batch; the
	// returned identifier must not be in used.
	IDAllocator interface {
		Allocate(used map[int]struct{}) (int, error)
	}

	// RandomIDs draws identifiers uniformly from [0, Space) and redraws on
	// collision.
	RandomIDs struct {
		// Space is the exclusive upper bound, DefaultIDSpace when zero.
		Space int
		// Attempts bounds the number of draws, DefaultIDAttempts when zero.
		Attempts int
		// IntN draws a number in [0, n), rand.IntN when nil.
		IntN func(n int) int
	}

	// SequentialIDs issues one more than the largest used identifier.
	SequentialIDs struct{}
)

// Allocate implements IDAllocator.
func (r RandomIDs) Allocate(used map[int]struct{}) (int, error) {
	space := r.Space
	if space <= 0 {
		space = DefaultIDSpace
	}
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultIDAttempts
	}
	intN := r.IntN
	if intN == nil {
		intN = rand.IntN
	}
	for range attempts {
		id := intN(space)
		if _, taken := used[id]; !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w after %d attempts in [0, %d)", ErrIDSpaceExhausted, attempts, space)
}

// Allocate implements IDAllocator. The first identifier of an empty dashboard
// is 1.
func (SequentialIDs) Allocate(used map[int]struct{}) (int, error) {
	if len(used) == 0 {
		return 1, nil
	}
	ids := make([]int, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	return slices.Max(ids) + 1, nil
}
