package schema

import (
	"context"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
)

// AddBlobPartition allocates a partition for raw binary records. Blob
// partitions belong to no class and are never selected for class records.
func (c *Catalog) AddBlobPartition(ctx context.Context) (int32, error) {
	var pid int32
	err := c.write(ctx, "add_blob_partition", auth.Schema, auth.Update, "", func(ch *change) error {
		parts, err := c.allocatePartitions(ctx, 1)
		if err != nil {
			return err
		}
		pid = parts[0]
		c.blobs[pid] = true
		return nil
	})
	return pid, err
}

// RemoveBlobPartition drops a blob partition with its records.
func (c *Catalog) RemoveBlobPartition(ctx context.Context, pid int32) error {
	return c.write(ctx, "remove_blob_partition", auth.Schema, auth.Update, "", func(ch *change) error {
		if !c.blobs[pid] {
			return markf(ErrNotFound, "partition %d is not a blob partition", pid)
		}
		delete(c.blobs, pid)
		c.dropPartitions(ctx, []int32{pid})
		if clog.V(1) {
			clog.Infof("schema: removed blob partition %d", pid)
		}
		return nil
	})
}

// BlobPartitions returns the blob partitions sorted.
func (c *Catalog) BlobPartitions() []int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blobPartitionsLocked()
}

func (c *Catalog) blobPartitionsLocked() []int32 {
	out := make([]int32, 0, len(c.blobs))
	for pid := range c.blobs {
		out = append(out, pid)
	}
	sortPartitions(out)
	return out
}
