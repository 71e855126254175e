package schema

import (
	"context"
	"strings"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/types"
)

// CreateProperty declares a property on a class. Unless opts.Unsafe is set,
// the creation fails when stored records of the class hold values that do
// not fit the declared type.
func (c *Catalog) CreateProperty(ctx context.Context, className, name string, t types.Tag, opts PropertyOptions) error {
	if err := checkPropertyName(name); err != nil {
		return err
	}
	if err := checkLinked(t, opts.LinkedType, opts.LinkedClass); err != nil {
		return err
	}
	return c.write(ctx, "create_property", auth.Class, auth.Update, className, func(ch *change) error {
		cl, err := c.classLocked(className)
		if err != nil {
			return err
		}
		var linked *class
		if opts.LinkedClass != "" {
			if linked, err = c.classLocked(opts.LinkedClass); err != nil {
				return err
			}
		}
		if _, ok := cl.props[name]; ok {
			return markf(ErrNameConflict, "property %s.%s already exists", cl.name, name)
		}
		if p := cl.property(name); p != nil && p.tag() != t {
			return markf(ErrTypeConflict, "property %s is inherited with type %v", p.fullName(), p.tag())
		}
		for _, d := range cl.descendants() {
			if p, ok := d.props[name]; ok && p.tag() != t {
				return markf(ErrTypeConflict, "subclass property %s has type %v", p.fullName(), p.tag())
			}
		}
		if !opts.Unsafe {
			if err := c.checkStoredValues(ctx, cl, name, t, linked); err != nil {
				return err
			}
		}
		cl.props[name] = &property{
			global:      c.globals.findOrCreate(name, t),
			owner:       cl,
			linkedType:  opts.LinkedType,
			linkedClass: linked,
		}
		ch.emit(propertyCreated, cl.name, name)
		return nil
	})
}

func (c *Catalog) declaredLocked(className, name string) (*class, *property, error) {
	cl, err := c.classLocked(className)
	if err != nil {
		return nil, nil, err
	}
	p, ok := cl.props[name]
	if !ok {
		if q := cl.property(name); q != nil {
			return nil, nil, markf(ErrIllegalState, "property %s is inherited from %q", name, q.owner.name)
		}
		return nil, nil, markf(ErrNotFound, "property %s.%s not found", cl.name, name)
	}
	return cl, p, nil
}

// DropProperty removes a property declared on a class. Stored values are
// kept as undeclared fields.
func (c *Catalog) DropProperty(ctx context.Context, className, name string) error {
	return c.write(ctx, "drop_property", auth.Class, auth.Update, className, func(ch *change) error {
		cl, p, err := c.declaredLocked(className, name)
		if err != nil {
			return err
		}
		if used := c.indexedBy(cl, name); len(used) != 0 {
			return markf(ErrIllegalState, "property %s is used by indexes %v", p.fullName(), used)
		}
		delete(cl.props, name)
		ch.emit(propertyDropped, cl.name, name)
		return nil
	})
}

// RenameProperty renames a declared property and the matching field of
// stored records.
func (c *Catalog) RenameProperty(ctx context.Context, className, name, newName string) error {
	if err := checkPropertyName(newName); err != nil {
		return err
	}
	return c.write(ctx, "rename_property", auth.Class, auth.Update, className, func(ch *change) error {
		cl, p, err := c.declaredLocked(className, name)
		if err != nil {
			return err
		}
		if name == newName {
			return nil
		}
		if q := cl.property(newName); q != nil {
			return markf(ErrNameConflict, "property %s already exists", q.fullName())
		}
		for _, d := range cl.descendants() {
			if _, ok := d.props[newName]; ok {
				return markf(ErrNameConflict, "property %s.%s already exists", d.name, newName)
			}
		}
		if used := c.indexedBy(cl, name); len(used) != 0 {
			return markf(ErrIllegalState, "property %s is used by indexes %v", p.fullName(), used)
		}
		delete(cl.props, name)
		p.global = c.globals.findOrCreate(newName, p.tag())
		cl.props[newName] = p
		ch.emit(propertyDropped, cl.name, name)
		ch.emit(propertyCreated, cl.name, newName)
		ch.migrations = append(ch.migrations, renamePropertyMigration(cl.name, name, newName))
		return nil
	})
}

// ChangePropertyType changes the type of a declared property and converts
// stored values. Unless unsafe is set, the two types must be related by
// castability and no stored value may fall outside of the new type.
func (c *Catalog) ChangePropertyType(ctx context.Context, className, name string, t types.Tag, unsafe bool) error {
	if !t.Valid() {
		return markf(ErrTypeConflict, "invalid property type")
	}
	return c.write(ctx, "change_property_type", auth.Class, auth.Update, className, func(ch *change) error {
		cl, p, err := c.declaredLocked(className, name)
		if err != nil {
			return err
		}
		old := p.tag()
		if old == t {
			return nil
		}
		if !unsafe {
			if !t.CanCastFrom(old) && !old.CanCastFrom(t) {
				return markf(ErrTypeConflict, "cannot change type of %s from %v to %v", p.fullName(), old, t)
			}
			linked := p.linkedClass
			if !t.AcceptsLinkedClass() {
				linked = nil
			}
			if err := c.checkStoredValues(ctx, cl, name, t, linked); err != nil {
				return err
			}
		}
		if used := c.indexedBy(cl, name); len(used) != 0 && !unsafe {
			return markf(ErrIllegalState, "property %s is used by indexes %v", p.fullName(), used)
		}
		p.global = c.globals.findOrCreate(name, t)
		if !t.AcceptsLinkedType() {
			p.linkedType = types.Invalid
		}
		if !t.AcceptsLinkedClass() {
			p.linkedClass = nil
		}
		if cleared := p.dropStaleAttrs(c.conv); len(cleared) != 0 {
			clog.Warningf("schema: %s changed from %v to %v, cleared %s", p.fullName(), old, t, strings.Join(cleared, ", "))
		}
		ch.migrations = append(ch.migrations, changeTypeMigration(c.conv, cl.name, name, t, p.linkedType, p.linkedClassName()))
		return nil
	})
}

// AlterProperty changes one attribute of a declared property given as text.
// Name and type changes go through RenameProperty and ChangePropertyType.
func (c *Catalog) AlterProperty(ctx context.Context, className, name string, attr PropertyAttr, value string) error {
	switch attr {
	case PropertyName:
		return c.RenameProperty(ctx, className, name, strings.TrimSpace(value))
	case PropertyType:
		t, err := types.ParseTag(value)
		if err != nil {
			return markf(ErrTypeConflict, "%v", err)
		}
		return c.ChangePropertyType(ctx, className, name, t, false)
	}
	return c.write(ctx, "alter_property", auth.Class, auth.Update, className, func(ch *change) error {
		_, p, err := c.declaredLocked(className, name)
		if err != nil {
			return err
		}
		np := p.clone(p.owner)
		if err := c.setPropertyAttr(np, attr, value); err != nil {
			return err
		}
		if err := np.checkAttrs(c.conv); err != nil {
			return err
		}
		*p = *np
		return nil
	})
}

func (c *Catalog) setPropertyAttr(p *property, attr PropertyAttr, value string) error {
	trimmed := strings.TrimSpace(value)
	switch attr {
	case PropertyLinkedType:
		t := types.Invalid
		if trimmed != "" {
			var err error
			if t, err = types.ParseTag(trimmed); err != nil {
				return markf(ErrTypeConflict, "%v", err)
			}
		}
		if err := checkLinked(p.tag(), t, ""); err != nil {
			return err
		}
		p.linkedType = t
	case PropertyLinkedClass:
		if trimmed == "" {
			p.linkedClass = nil
			return nil
		}
		if err := checkLinked(p.tag(), types.Invalid, trimmed); err != nil {
			return err
		}
		cl, err := c.classLocked(trimmed)
		if err != nil {
			return err
		}
		p.linkedClass = cl
	case PropertyMin:
		p.min = trimmed
	case PropertyMax:
		p.max = trimmed
	case PropertyDefault:
		p.defaultValue = value
	case PropertyRegexp:
		p.regexp = value
	case PropertyCollate:
		p.collate = strings.ToLower(trimmed)
	case PropertyDescription:
		p.description = trimmed
	case PropertyMandatory, PropertyNotNull, PropertyReadOnly:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		switch attr {
		case PropertyMandatory:
			p.mandatory = b
		case PropertyNotNull:
			p.notNull = b
		default:
			p.readOnly = b
		}
	case PropertyCustom:
		k, v, err := parseCustom(value)
		if err != nil {
			return err
		}
		if p.custom, err = setCustom(p.custom, k, v); err != nil {
			return err
		}
	default:
		return markf(ErrNotFound, "unknown property attribute %v", attr)
	}
	return nil
}
