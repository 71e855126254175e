package schema

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// Migrator rewrites the stored records of a class (and of its subclasses)
// that match a predicate. It must tolerate being run again over partially
// migrated data.
type Migrator interface {
	RewriteMatching(ctx context.Context, class string, match func(*store.Record) bool, rewrite func(*store.Record) error) error
}

type migration struct {
	kind    string
	class   string
	match   func(*store.Record) bool
	rewrite func(*store.Record) error
}

func (c *Catalog) migrate(ctx context.Context, m Migrator, mg migration) error {
	mMigrations.WithLabelValues(mg.kind).Inc()
	if m == nil {
		clog.Warningf("schema: %s migration of class %q skipped, no migrator configured", mg.kind, mg.class)
		return nil
	}
	clog.Infof("schema: %s migration of class %q started", mg.kind, mg.class)
	if err := m.RewriteMatching(ctx, mg.class, mg.match, mg.rewrite); err != nil {
		return errors.Wrapf(err, "%s migration of class %q", mg.kind, mg.class)
	}
	clog.Infof("schema: %s migration of class %q finished", mg.kind, mg.class)
	return nil
}

func renameClassMigration(old, name string) migration {
	return migration{
		kind:  "rename_class",
		class: name,
		match: func(r *store.Record) bool { return r.Class == old },
		rewrite: func(r *store.Record) error {
			r.Class = name
			return nil
		},
	}
}

func renamePropertyMigration(class, old, name string) migration {
	return migration{
		kind:  "rename_property",
		class: class,
		match: func(r *store.Record) bool {
			_, ok := r.Fields[old]
			return ok
		},
		rewrite: func(r *store.Record) error {
			if _, ok := r.Fields[name]; !ok {
				r.Fields[name] = r.Fields[old]
			}
			delete(r.Fields, old)
			return nil
		},
	}
}

func changeTypeMigration(conv *types.Converter, class, prop string, t, linkedType types.Tag, linkedClass string) migration {
	return migration{
		kind:  "change_type",
		class: class,
		match: func(r *store.Record) bool {
			v := r.Fields[prop]
			return v != nil && !t.IsTypeInstance(v)
		},
		rewrite: func(r *store.Record) error {
			v, err := conv.Convert(r.Fields[prop], t, linkedType, linkedClass)
			if err != nil {
				return err
			}
			r.Fields[prop] = v
			return nil
		},
	}
}

// checkStoredValues fails if a stored value of a property cannot be kept
// under the tag t without rewriting it, or if it links to a record outside
// of linked when linked is set. Empty collections fit every collection tag.
func (c *Catalog) checkStoredValues(ctx context.Context, cl *class, prop string, t types.Tag, linked *class) error {
	accepted := t.CastableFrom()
	for _, pid := range cl.poly {
		err := store.Each(ctx, c.deps.Records, pid, func(r *store.Record) error {
			v := r.Fields[prop]
			if v == nil {
				return nil
			}
			if t.IsMultiValue() && types.Len(v) == 0 {
				return nil
			}
			inferred := types.Infer(v)
			if !containsTag(accepted, inferred) {
				return errors.Wrapf(&types.ConversionError{
					Value: v,
					Tag:   t,
					Cause: errors.Newf("stored value of type %v", inferred),
				}, "record %v of class %q", r.ID, cl.name)
			}
			if linked == nil {
				return nil
			}
			items := []types.Value{v}
			if t.IsMultiValue() {
				items, _ = types.Items(v)
			}
			for _, it := range items {
				owner := c.ownerOf(it)
				if owner != nil && !owner.isSubClassOf(linked) {
					return markf(ErrValidation, "record %v of class %q links to class %q which is not a %q",
						r.ID, cl.name, owner.name, linked.name)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func containsTag(list []types.Tag, t types.Tag) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

// ownerOf returns the class of an entity or of the record an id points to,
// nil when it cannot be told.
func (c *Catalog) ownerOf(v types.Value) *class {
	switch v := v.(type) {
	case *types.Entity:
		if v.Class != "" {
			return c.classes[lower(v.Class)]
		}
		if !v.Embedded && v.ID.Partition >= 0 {
			return c.partOwner[v.ID.Partition]
		}
	case types.RecordID:
		return c.partOwner[v.Partition]
	}
	return nil
}
