// Package derangement draws uniformly random fixed-point-free permutations by
// rejection sampling Fisher-Yates shuffles.
package derangement

import (
	"fmt"
	"math/rand/v2"

	"secretsanta/pkg/domain"
)

// MaxAttempts bounds the number of shuffles tried before giving up. A single
// shuffle is a derangement with probability close to 1/e, so exhausting the
// budget is not expected to happen in practice.
const MaxAttempts = 1000

// DegenerateInputError reports an id list that admits no derangement.
type DegenerateInputError struct {
	N      int
	Reason string
}

func (e DegenerateInputError) Error() string {
	return fmt.Sprintf("derangement: degenerate input (n=%d): %s", e.N, e.Reason)
}

// TimeoutError reports that the attempt budget ran out without a valid draw.
type TimeoutError struct {
	Attempts int
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("derangement: no valid permutation after %d attempts", e.Attempts)
}

// Generate returns an assignment in which every id gives to a different id and
// every id receives exactly once. rng may be nil.
func Generate(ids []string, rng *rand.Rand) (domain.Assignment, error) {
	return generate(ids, rng, MaxAttempts)
}

func generate(ids []string, rng *rand.Rand, budget int) (domain.Assignment, error) {
	n := len(ids)
	if n < 2 {
		return nil, DegenerateInputError{N: n, Reason: "at least two participants are required"}
	}
	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, DegenerateInputError{N: n, Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	permuted := make([]string, n)
	for attempt := 1; attempt <= budget; attempt++ {
		copy(permuted, ids)
		for i := n - 1; i > 0; i-- {
			j := intN(i + 1)
			permuted[i], permuted[j] = permuted[j], permuted[i]
		}
		if hasFixedPoint(ids, permuted) {
			continue
		}
		out := make(domain.Assignment, n)
		for k, giver := range ids {
			out[giver] = permuted[k]
		}
		return out, nil
	}
	return nil, TimeoutError{Attempts: budget}
}

func hasFixedPoint(ids, permuted []string) bool {
	for k := range ids {
		if permuted[k] == ids[k] {
			return true
		}
	}
	return false
}
