package explain

import (
	"fmt"
	"math/rand"

	"github.com/wlattner/sdm/dataset"
)

// ReplacePolicy decides whether instances are drawn with replacement.
type ReplacePolicy string

const (
	Never  ReplacePolicy = "never"
	Always ReplacePolicy = "always"
	// Auto replaces only when there are fewer positives than requested.
	Auto ReplacePolicy = "auto"
)

// ParseReplacePolicy validates a policy name; empty means Auto.
func ParseReplacePolicy(s string) (ReplacePolicy, error) {
	switch p := ReplacePolicy(s); p {
	case "":
		return Auto, nil
	case Never, Always, Auto:
		return p, nil
	}
	return "", fmt.Errorf("invalid replace policy %q", s)
}

// SampleInstances draws n presence rows of test. The draw depends only on
// test, n, policy and seed.
func SampleInstances(test *dataset.Dataset, n int, policy ReplacePolicy, seed int64) ([]dataset.Observation, error) {
	if n < 1 {
		return nil, nil
	}
	pos := test.Positives()
	if len(pos) == 0 {
		return nil, fmt.Errorf("no presence rows in %d test rows: %w", test.Len(), dataset.ErrInsufficientPositives)
	}

	replace := policy == Always || (policy == Auto && len(pos) < n)
	if !replace && len(pos) < n {
		return nil, fmt.Errorf("%d presence rows, need %d without replacement: %w",
			len(pos), n, dataset.ErrInsufficientPositives)
	}

	r := rand.New(rand.NewSource(seed))
	out := make([]dataset.Observation, n)
	if replace {
		for i := range out {
			out[i] = test.Rows[pos[r.Intn(len(pos))]]
		}
		return out, nil
	}
	for i, k := range r.Perm(len(pos))[:n] {
		out[i] = test.Rows[pos[k]]
	}
	return out, nil
}
