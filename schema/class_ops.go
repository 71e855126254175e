package schema

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// ClassOptions are the optional parts of a class declaration.
type ClassOptions struct {
	SuperClasses []string
	// Partitions is the number of partitions to allocate. Zero uses the
	// catalog default.
	Partitions int
	Abstract   bool
}

// CreateClass declares a new class.
func (c *Catalog) CreateClass(ctx context.Context, name string, opts ClassOptions) error {
	if err := checkClassName(name); err != nil {
		return err
	}
	return c.write(ctx, "create_class", auth.Schema, auth.Create, name, func(ch *change) error {
		_, err := c.createClassLocked(ctx, ch, name, opts)
		return err
	})
}

// GetOrCreateClass declares a class unless a class with the same name
// exists. It reports if the class was created. Options are ignored for an
// existing class, but the caller still needs the create permission.
func (c *Catalog) GetOrCreateClass(ctx context.Context, name string, opts ClassOptions) (bool, error) {
	if err := c.gate.Check(ctx, auth.Schema, auth.Create, name); err != nil {
		return false, err
	}
	if c.ExistsClass(name) {
		return false, nil
	}
	if err := checkClassName(name); err != nil {
		return false, err
	}
	created := false
	err := c.write(ctx, "get_or_create_class", auth.Schema, auth.Create, name, func(ch *change) error {
		if _, ok := c.classes[lower(name)]; ok {
			return nil
		}
		if _, err := c.createClassLocked(ctx, ch, name, opts); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (c *Catalog) createClassLocked(ctx context.Context, ch *change, name string, opts ClassOptions) (*class, error) {
	if err := checkClassName(name); err != nil {
		return nil, err
	}
	if old, ok := c.classes[lower(name)]; ok {
		return nil, markf(ErrNameConflict, "class %q already exists", old.name)
	}
	supers, err := c.resolveSupers(opts.SuperClasses)
	if err != nil {
		return nil, err
	}
	if err := checkSuperSet(nil, supers); err != nil {
		return nil, err
	}
	var parts []int32
	if !opts.Abstract {
		n := opts.Partitions
		if n <= 0 {
			n = c.opts.DefaultPartitions
		}
		if parts, err = c.allocatePartitions(ctx, n); err != nil {
			return nil, err
		}
	}

	cl := newClass(name)
	cl.abstract = opts.Abstract
	cl.selection = c.opts.Selection
	cl.parts = parts
	for _, s := range supers {
		link(cl, s)
	}
	for _, pid := range parts {
		c.partOwner[pid] = cl
	}
	c.classes[lower(name)] = cl
	refreshPolymorphic(cl)
	c.syncIndexes(ctx, partitionSet(parts))

	ch.emit(classCreated, cl.name, "")
	if clog.V(1) {
		clog.Infof("schema: created class %q with partitions %v", cl.name, parts)
	}
	return cl, nil
}

func (c *Catalog) resolveSupers(names []string) ([]*class, error) {
	var out []*class
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s, err := c.classLocked(n)
		if err != nil {
			return nil, err
		}
		if !containsClass(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// checkSuperSet validates a list of superclasses for cl as a batch: no
// cycles, no conflicting property types between them and cl, and a class
// cannot become both a vertex and an edge type. cl is nil for a new class.
func checkSuperSet(cl *class, supers []*class) error {
	merged := make(map[string]*property)
	if cl != nil {
		for n, p := range cl.hierarchyProperties() {
			merged[n] = p
		}
	}
	vertex, edge := false, false
	for _, s := range supers {
		if cl != nil && s.isSubClassOf(cl) {
			return markf(ErrCyclicInheritance, "class %q is a subclass of %q", s.name, cl.name)
		}
		props := s.allProperties()
		if n, bad := typeConflicts(merged, props); bad {
			return markf(ErrTypeConflict, "property %q has different types in %q and the other superclasses", n, s.name)
		}
		for n, p := range props {
			if _, ok := merged[n]; !ok {
				merged[n] = p
			}
		}
		vertex = vertex || s.isVertexType()
		edge = edge || s.isEdgeType()
	}
	if vertex && edge {
		return markf(ErrIllegalState, "a class cannot be both a vertex and an edge type")
	}
	return nil
}

// hierarchyProperties returns the properties declared by c and by its
// subclasses, which all inherit from a new superclass of c.
func (c *class) hierarchyProperties() map[string]*property {
	out := make(map[string]*property, len(c.props))
	for n, p := range c.props {
		out[n] = p
	}
	for _, d := range c.descendants() {
		for n, p := range d.props {
			if _, ok := out[n]; !ok {
				out[n] = p
			}
		}
	}
	return out
}

func (c *Catalog) isRoot(cl *class) bool {
	if !c.opts.GraphRoots {
		return false
	}
	return cl.name == VertexClass || cl.name == EdgeClass
}

// DropClass removes a class without subclasses, its partitions and its
// indexes.
func (c *Catalog) DropClass(ctx context.Context, name string) error {
	return c.write(ctx, "drop_class", auth.Schema, auth.Delete, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		if len(cl.subs) != 0 {
			return markf(ErrIllegalState, "class %q has %d subclasses", cl.name, len(cl.subs))
		}
		for _, o := range c.classes {
			if o == cl {
				continue
			}
			for _, p := range o.props {
				if p.linkedClass == cl {
					return markf(ErrIllegalState, "class %q is linked by property %s", cl.name, p.fullName())
				}
			}
		}
		supers := append([]*class(nil), cl.supers...)
		for _, s := range supers {
			unlink(cl, s)
		}
		refreshPolymorphic(supers...)
		delete(c.classes, lower(cl.name))
		for _, pid := range cl.parts {
			delete(c.partOwner, pid)
		}
		// leave ancestor indexes before the partitions disappear
		c.syncIndexes(ctx, nil)
		for key, idx := range c.indexes {
			if idx.class != cl {
				continue
			}
			if err := c.deps.Indexes.DropIndex(ctx, idx.name); err != nil {
				clog.Errorf("schema: cannot drop index %q of class %q: %v", idx.name, cl.name, err)
			}
			delete(c.indexes, key)
		}
		c.dropPartitions(ctx, cl.parts)
		ch.emit(classDropped, cl.name, "")
		if clog.V(1) {
			clog.Infof("schema: dropped class %q", cl.name)
		}
		return nil
	})
}

// TruncateClass deletes the records of a class, and of its subclasses with
// polymorphic set, and returns how many were removed. Indexes covering the
// emptied partitions are rebuilt empty. Vertex and edge classes holding
// records are only truncated with unsafe set, as that leaves dangling links.
//
// Records are deleted after the catalog lock is released, so a concurrent
// schema change may observe a partially truncated class.
func (c *Catalog) TruncateClass(ctx context.Context, name string, polymorphic, unsafe bool) (n int64, err error) {
	defer func() {
		mOperations.WithLabelValues("truncate_class", result(err)).Inc()
	}()
	if store.InTransaction(ctx) {
		return 0, markf(ErrIllegalState, "truncate_class: cannot truncate inside a transaction")
	}
	if err := c.gate.Check(ctx, auth.Class, auth.Delete, name); err != nil {
		return 0, err
	}
	c.mu.RLock()
	cl, err := c.classLocked(name)
	if err != nil {
		c.mu.RUnlock()
		return 0, err
	}
	className := cl.name
	graph := cl.isVertexType() || cl.isEdgeType()
	parts := cl.parts
	if polymorphic {
		parts = cl.poly
	}
	parts = clonePartitions(parts)
	indexed := c.partitionIndexes(parts)
	c.mu.RUnlock()

	if !unsafe && graph {
		cnt, err := c.countPartitions(ctx, parts)
		if err != nil {
			return 0, err
		}
		if cnt != 0 {
			return 0, markf(ErrIllegalState, "class %q holds %d graph records, truncate it as unsafe", className, cnt)
		}
	}
	for _, pid := range parts {
		removed, err := c.truncatePartition(ctx, pid)
		n += removed
		if err != nil {
			return n, err
		}
		c.resetIndexes(ctx, pid, indexed[pid])
	}
	clog.Infof("schema: truncated class %q, %d records removed", className, n)
	return n, nil
}

// truncateBatch is the number of record ids collected before deleting.
const truncateBatch = 1000

var errBatchFull = errors.New("batch full")

func (c *Catalog) truncatePartition(ctx context.Context, pid int32) (int64, error) {
	var n int64
	for {
		ids := make([]types.RecordID, 0, truncateBatch)
		err := store.Each(ctx, c.deps.Records, pid, func(r *store.Record) error {
			ids = append(ids, r.ID)
			if len(ids) == truncateBatch {
				return errBatchFull
			}
			return nil
		})
		if err != nil && !errors.Is(err, errBatchFull) {
			return n, err
		}
		for _, id := range ids {
			if err := c.deps.Records.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				return n, errors.Wrapf(err, "cannot delete record %v", id)
			}
			n++
		}
		if len(ids) < truncateBatch {
			return n, nil
		}
	}
}

// partitionIndexes returns the names of the indexes covering each partition.
func (c *Catalog) partitionIndexes(parts []int32) map[int32][]string {
	out := make(map[int32][]string)
	for _, idx := range c.sortedIndexes() {
		for _, pid := range parts {
			if idx.parts[pid] {
				out[pid] = append(out[pid], idx.name)
			}
		}
	}
	return out
}

// resetIndexes registers an emptied partition again with the given indexes.
func (c *Catalog) resetIndexes(ctx context.Context, pid int32, indexes []string) {
	if c.deps.Indexes == nil {
		return
	}
	for _, name := range indexes {
		err := c.deps.Indexes.RemovePartitionFromIndex(ctx, name, pid)
		if err == nil {
			err = c.deps.Indexes.AddPartitionToIndex(ctx, name, pid, true)
		}
		if err != nil {
			clog.Warningf("schema: cannot reset partition %d of index %q: %v", pid, name, err)
		}
	}
}

// RenameClass changes the name of a class and of the class field of its
// stored records.
func (c *Catalog) RenameClass(ctx context.Context, name, newName string) error {
	if err := checkClassName(newName); err != nil {
		return err
	}
	return c.write(ctx, "rename_class", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		if c.isRoot(cl) {
			return markf(ErrIllegalState, "class %q cannot be renamed", cl.name)
		}
		if o, ok := c.classes[lower(newName)]; ok && o != cl {
			return markf(ErrNameConflict, "class %q already exists", o.name)
		}
		old := cl.name
		if old == newName {
			return nil
		}
		delete(c.classes, lower(old))
		cl.name = newName
		c.classes[lower(newName)] = cl
		for _, idx := range c.indexes {
			if idx.class == cl {
				idx.className = newName
			}
		}
		ch.migrations = append(ch.migrations, renameClassMigration(old, newName))
		return nil
	})
}

// AddSuperClass makes super a direct superclass of a class. The partitions
// of the class join every index of super and of its ancestors.
func (c *Catalog) AddSuperClass(ctx context.Context, name, super string) error {
	return c.write(ctx, "add_superclass", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		s, err := c.classLocked(super)
		if err != nil {
			return err
		}
		if c.isRoot(s) {
			return markf(ErrIllegalState, "%q can only be set as superclass when %q is created", s.name, cl.name)
		}
		if containsClass(cl.supers, s) {
			return markf(ErrIllegalState, "%q is already a superclass of %q", s.name, cl.name)
		}
		if s.isSubClassOf(cl) {
			return markf(ErrCyclicInheritance, "cannot add %q as superclass of %q: it is one of its subclasses", s.name, cl.name)
		}
		if err := checkSuperSet(cl, append(append([]*class(nil), cl.supers...), s)); err != nil {
			return err
		}
		link(cl, s)
		refreshPolymorphic(cl)
		c.syncIndexes(ctx, nil)
		return nil
	})
}

// RemoveSuperClass removes a direct superclass. The partitions of the
// class leave the indexes of the former ancestors.
func (c *Catalog) RemoveSuperClass(ctx context.Context, name, super string) error {
	return c.write(ctx, "remove_superclass", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		s, err := c.classLocked(super)
		if err != nil {
			return err
		}
		if !containsClass(cl.supers, s) {
			return markf(ErrNotFound, "%q is not a superclass of %q", s.name, cl.name)
		}
		if c.isRoot(s) {
			return markf(ErrIllegalState, "%q cannot be removed from the superclasses of %q", s.name, cl.name)
		}
		unlink(cl, s)
		refreshPolymorphic(s)
		c.syncIndexes(ctx, nil)
		return nil
	})
}

// SetSuperClasses replaces the direct superclasses of a class. A vertex or
// edge class must keep V or E among its ancestors.
func (c *Catalog) SetSuperClasses(ctx context.Context, name string, supers []string) error {
	return c.write(ctx, "set_superclasses", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		list, err := c.resolveSupers(supers)
		if err != nil {
			return err
		}
		if err := checkSuperSet(cl, list); err != nil {
			return err
		}
		if c.opts.GraphRoots {
			for _, root := range []string{VertexClass, EdgeClass} {
				if strings.EqualFold(cl.name, root) {
					continue
				}
				keeps := false
				for _, s := range list {
					keeps = keeps || s.hasAncestorNamed(root)
				}
				if had := cl.hasAncestorNamed(root); had && !keeps {
					return markf(ErrIllegalState, "class %q must keep %q as an ancestor", cl.name, root)
				} else if !had && keeps {
					return markf(ErrIllegalState, "class %q can only extend %q when it is created", cl.name, root)
				}
			}
		}
		old := append([]*class(nil), cl.supers...)
		for _, s := range old {
			unlink(cl, s)
		}
		for _, s := range list {
			link(cl, s)
		}
		refreshPolymorphic(append(old, cl)...)
		c.syncIndexes(ctx, nil)
		return nil
	})
}

// SetAbstract switches a class between abstract and concrete. An abstract
// class owns no partitions, so it must have no records of its own.
func (c *Catalog) SetAbstract(ctx context.Context, name string, abstract bool) error {
	return c.write(ctx, "set_abstract", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		if cl.abstract == abstract {
			return nil
		}
		if !abstract {
			parts, err := c.allocatePartitions(ctx, c.opts.DefaultPartitions)
			if err != nil {
				return err
			}
			cl.abstract = false
			cl.parts = parts
			for _, pid := range parts {
				c.partOwner[pid] = cl
			}
			refreshPolymorphic(cl)
			c.syncIndexes(ctx, partitionSet(parts))
			return nil
		}
		n, err := c.countPartitions(ctx, cl.parts)
		if err != nil {
			return err
		}
		if n != 0 {
			return markf(ErrIllegalState, "class %q has %d records and cannot become abstract", cl.name, n)
		}
		parts := cl.parts
		cl.abstract = true
		cl.parts = nil
		for _, pid := range parts {
			delete(c.partOwner, pid)
		}
		refreshPolymorphic(cl)
		c.syncIndexes(ctx, nil)
		c.dropPartitions(ctx, parts)
		return nil
	})
}

// AddPartition allocates one more partition for a concrete class.
func (c *Catalog) AddPartition(ctx context.Context, name string) (int32, error) {
	var pid int32
	err := c.write(ctx, "add_partition", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		if cl.abstract {
			return markf(ErrIllegalState, "abstract class %q has no partitions", cl.name)
		}
		parts, err := c.allocatePartitions(ctx, 1)
		if err != nil {
			return err
		}
		pid = parts[0]
		cl.parts = addPartition(cl.parts, pid)
		c.partOwner[pid] = cl
		refreshPolymorphic(cl)
		c.syncIndexes(ctx, partitionSet(parts))
		return nil
	})
	return pid, err
}

// AlterClass changes one attribute of a class given as text.
func (c *Catalog) AlterClass(ctx context.Context, name string, attr ClassAttr, value string) error {
	switch attr {
	case ClassName:
		return c.RenameClass(ctx, name, strings.TrimSpace(value))
	case ClassAbstract:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		return c.SetAbstract(ctx, name, b)
	case ClassSuperClasses:
		var list []string
		if strings.TrimSpace(value) != "" {
			list = strings.Split(value, ",")
		}
		return c.SetSuperClasses(ctx, name, list)
	}
	var set func(cl *class) error
	switch attr {
	case ClassDescription:
		set = func(cl *class) error {
			cl.description = strings.TrimSpace(value)
			return nil
		}
	case ClassStrict:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		set = func(cl *class) error {
			cl.strict = b
			return nil
		}
	case ClassCustom:
		k, v, err := parseCustom(value)
		if err != nil {
			return err
		}
		set = func(cl *class) (err error) {
			cl.custom, err = setCustom(cl.custom, k, v)
			return err
		}
	case ClassPartitionSelection:
		v := strings.ToLower(strings.TrimSpace(value))
		if err := checkSelection(v); err != nil {
			return err
		}
		set = func(cl *class) error {
			cl.selection = v
			return nil
		}
	default:
		return markf(ErrNotFound, "unknown class attribute %v", attr)
	}
	return c.write(ctx, "alter_class", auth.Class, auth.Update, name, func(ch *change) error {
		cl, err := c.classLocked(name)
		if err != nil {
			return err
		}
		return set(cl)
	})
}
