package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Split partitions d into train and test sets. round(p*n) rows go to train;
// the assignment is a permutation drawn from seed, so equal inputs and seeds
// always produce the same partition. Labels are not stratified.
func Split(d *Dataset, p float64, seed int64) (train, test *Dataset, err error) {
	if p <= 0 || p >= 1 {
		return nil, nil, fmt.Errorf("split proportion %v outside (0, 1)", p)
	}
	n := d.Len()
	if n == 0 {
		return nil, nil, ErrNoData
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTrain := int(math.Round(p * float64(n)))

	return d.Subset(perm[:nTrain]), d.Subset(perm[nTrain:]), nil
}
