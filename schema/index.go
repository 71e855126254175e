package schema

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/store"
)

// index is the catalog side of an index: which class it belongs to and
// which partitions it covers. The entries live in the index store.
type index struct {
	name      string
	class     *class
	className string
	typ       store.IndexType
	fields    []string

	parts map[int32]bool
	// partitions whose registration failed; retried once they leave and
	// join the hierarchy again
	excluded map[int32]bool
}

func (idx *index) definition() store.IndexDefinition {
	return store.IndexDefinition{
		Name:   idx.name,
		Class:  idx.className,
		Type:   idx.typ,
		Fields: append([]string(nil), idx.fields...),
	}
}

func (idx *index) partitions() []int32 {
	out := make([]int32, 0, len(idx.parts))
	for pid := range idx.parts {
		out = append(out, pid)
	}
	sortPartitions(out)
	return out
}

func checkIndexType(t store.IndexType) (store.IndexType, error) {
	switch store.IndexType(strings.ToUpper(string(t))) {
	case store.Unique:
		return store.Unique, nil
	case store.NotUnique:
		return store.NotUnique, nil
	}
	return "", markf(ErrNotFound, "unknown index type %q", t)
}

// CreateIndex declares an index over properties visible on a class. The
// index covers the polymorphic partitions of the class.
func (c *Catalog) CreateIndex(ctx context.Context, name, class string, typ store.IndexType, fields ...string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, ",; \t\r\n`") {
		return markf(ErrInvalidName, "invalid index name %q", name)
	}
	typ, err := checkIndexType(typ)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return markf(ErrInvalidName, "index %q has no fields", name)
	}
	return c.write(ctx, "create_index", auth.Index, auth.Create, name, func(ch *change) error {
		if c.deps.Indexes == nil {
			return markf(ErrIllegalState, "no index store configured")
		}
		if old, ok := c.indexes[lower(name)]; ok {
			return markf(ErrNameConflict, "index %q already exists", old.name)
		}
		cl, err := c.classLocked(class)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if cl.property(f) == nil {
				return markf(ErrNotFound, "property %q is not defined on class %q", f, cl.name)
			}
		}
		idx := &index{
			name:      name,
			class:     cl,
			className: cl.name,
			typ:       typ,
			fields:    append([]string(nil), fields...),
			parts:     partitionSet(cl.poly),
			excluded:  make(map[int32]bool),
		}
		if err := c.deps.Indexes.CreateIndex(ctx, idx.definition(), clonePartitions(cl.poly)); err != nil {
			return errors.Wrapf(err, "cannot create index %q", name)
		}
		c.indexes[lower(name)] = idx
		return nil
	})
}

// DropIndex removes an index.
func (c *Catalog) DropIndex(ctx context.Context, name string) error {
	return c.write(ctx, "drop_index", auth.Index, auth.Delete, name, func(ch *change) error {
		idx, ok := c.indexes[lower(name)]
		if !ok {
			return markf(ErrNotFound, "index %q not found", name)
		}
		if err := c.deps.Indexes.DropIndex(ctx, idx.name); err != nil && !errors.Is(err, store.ErrIndexNotFound) {
			return errors.Wrapf(err, "cannot drop index %q", idx.name)
		}
		delete(c.indexes, lower(name))
		return nil
	})
}

// indexedBy returns the names of indexes using a property of a class.
func (c *Catalog) indexedBy(cl *class, prop string) []string {
	var out []string
	for _, idx := range c.indexes {
		if !idx.class.isSubClassOf(cl) && !cl.isSubClassOf(idx.class) {
			continue
		}
		for _, f := range idx.fields {
			if f == prop {
				out = append(out, idx.name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) sortedIndexes() []*index {
	out := make([]*index, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// syncIndexes makes every index cover the polymorphic partitions of its
// class. A partition that fails to join an index is logged and left out of
// that index. Fresh partitions are required to be empty.
func (c *Catalog) syncIndexes(ctx context.Context, fresh map[int32]bool) {
	if c.deps.Indexes == nil {
		return
	}
	for _, idx := range c.sortedIndexes() {
		want := partitionSet(idx.class.poly)
		for pid := range idx.excluded {
			if !want[pid] {
				delete(idx.excluded, pid)
			}
		}
		for _, pid := range idx.class.poly {
			if idx.parts[pid] || idx.excluded[pid] {
				continue
			}
			err := c.deps.Indexes.AddPartitionToIndex(ctx, idx.name, pid, fresh[pid])
			if err != nil {
				clog.Warningf("schema: partition %d excluded from index %q: %v", pid, idx.name, err)
				mIndexExclusions.Inc()
				idx.excluded[pid] = true
				continue
			}
			idx.parts[pid] = true
		}
		for _, pid := range idx.partitions() {
			if want[pid] {
				continue
			}
			if err := c.deps.Indexes.RemovePartitionFromIndex(ctx, idx.name, pid); err != nil {
				clog.Warningf("schema: cannot remove partition %d from index %q: %v", pid, idx.name, err)
			}
			delete(idx.parts, pid)
		}
	}
}
