package schema

import (
	"context"

	"github.com/cayleygraph/catalog/store"
)

// Partition selection strategies for new records.
const (
	SelectRoundRobin = "round-robin"
	SelectDefault    = "default"
	SelectBalanced   = "balanced"
)

func checkSelection(s string) error {
	switch s {
	case SelectRoundRobin, SelectDefault, SelectBalanced:
		return nil
	}
	return markf(ErrNotFound, "unknown partition selection %q", s)
}

// selectPartition picks a partition for a new record of c. Abstract classes
// use the partitions of their nearest concrete ancestor.
func selectPartition(ctx context.Context, rs store.RecordStore, c *class) (int32, error) {
	owner := c
	if len(owner.parts) == 0 {
		owner = nil
		for _, a := range c.ancestors() {
			if len(a.parts) != 0 {
				owner = a
				break
			}
		}
		if owner == nil {
			return 0, markf(ErrIllegalState, "class %q has no partition to store records in", c.name)
		}
	}
	parts := owner.parts
	switch c.selection {
	case SelectDefault:
		return parts[0], nil
	case SelectBalanced:
		best, bestSize := parts[0], int64(-1)
		for _, pid := range parts {
			n, err := rs.PartitionSize(ctx, pid)
			if err != nil {
				return 0, err
			}
			if bestSize < 0 || n < bestSize {
				best, bestSize = pid, n
			}
		}
		return best, nil
	}
	i := c.next.Add(1) - 1
	return parts[int(i%uint32(len(parts)))], nil
}
