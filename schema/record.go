package schema

import (
	"sort"

	"github.com/cayleygraph/catalog/types"
)

// PrepareRecord converts the fields of a record of class to the declared
// property types and fills default values of absent properties. Undeclared
// fields are kept as they are. The input map is not modified.
func (s *Snapshot) PrepareRecord(class string, fields types.Map) (types.Map, error) {
	cl := s.Class(class)
	if cl == nil {
		return nil, markf(ErrNotFound, "class %q not found", class)
	}
	out := make(types.Map, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for name, p := range cl.props {
		v, ok := out[name]
		if !ok {
			if p.defaultValue != nil {
				out[name] = types.Copy(p.defaultValue)
			}
			continue
		}
		if v == nil {
			continue
		}
		cv, err := s.conv.Convert(v, p.Type(), p.linkedType, p.linkedClass)
		if err != nil {
			return nil, wrapf(ErrConversion, err, "field %s", p.FullName())
		}
		out[name] = cv
	}
	return out, nil
}

// Validate checks a record of class against the declared properties. prev
// is the stored version of the record, nil for a new one; it is used to
// enforce read only properties.
func (s *Snapshot) Validate(class string, rec, prev types.Map) error {
	cl := s.Class(class)
	if cl == nil {
		return markf(ErrNotFound, "class %q not found", class)
	}
	if cl.abstract {
		return markf(ErrValidation, "class %q is abstract", cl.name)
	}
	if cl.strict {
		var extra []string
		for k := range rec {
			if cl.props[k] == nil {
				extra = append(extra, k)
			}
		}
		if len(extra) != 0 {
			sort.Strings(extra)
			return markf(ErrValidation, "fields %v are not declared on strict class %q", extra, cl.name)
		}
	}
	for _, p := range cl.Properties() {
		v, ok := rec[p.Name()]
		if !ok {
			if p.mandatory {
				return markf(ErrValidation, "mandatory field %s is missing", p.FullName())
			}
			continue
		}
		if err := s.validateField(p, v); err != nil {
			return err
		}
		if p.readOnly && prev != nil {
			if old, had := prev[p.Name()]; had && !types.Equal(old, v) {
				return markf(ErrValidation, "field %s is read only", p.FullName())
			}
		}
	}
	return nil
}

func (s *Snapshot) validateField(p *Property, v types.Value) error {
	if v == nil {
		if p.notNull {
			return markf(ErrValidation, "field %s cannot be null", p.FullName())
		}
		return nil
	}
	t := p.Type()
	if !t.IsTypeInstance(v) {
		return markf(ErrValidation, "field %s has a value of kind %s instead of %v", p.FullName(), v.Kind(), t)
	}
	if p.linkedType != types.Invalid {
		items, _ := types.Items(v)
		for _, it := range items {
			if it != nil && !p.linkedType.IsTypeInstance(it) {
				return markf(ErrValidation, "field %s has an item of kind %s instead of %v", p.FullName(), it.Kind(), p.linkedType)
			}
		}
	}
	if p.linkedClass != "" {
		if err := s.checkLinkedClass(p, v); err != nil {
			return err
		}
	}
	if p.regexp != nil {
		if str, ok := v.(types.Text); ok && !p.regexp.MatchString(string(str)) {
			return markf(ErrValidation, "field %s does not match %q", p.FullName(), p.rawRegexp)
		}
	}
	return p.checkBounds(v)
}

func (s *Snapshot) checkLinkedClass(p *Property, v types.Value) error {
	items := []types.Value{v}
	if t := p.Type(); t.IsMultiValue() {
		items, _ = types.Items(v)
	}
	for _, it := range items {
		name, known := s.classOf(it)
		if !known {
			continue
		}
		c := s.Class(name)
		if c == nil || !c.IsSubClassOfName(p.linkedClass) {
			return markf(ErrValidation, "field %s links to class %q which is not a %q", p.FullName(), name, p.linkedClass)
		}
	}
	return nil
}

// classOf returns the class of an entity or of the record an id points to,
// when it can be told.
func (s *Snapshot) classOf(v types.Value) (string, bool) {
	switch v := v.(type) {
	case *types.Entity:
		if v.Class != "" {
			return v.Class, true
		}
		if !v.Embedded && v.ID.Partition >= 0 {
			return s.classOf(v.ID)
		}
	case types.RecordID:
		if c := s.ClassByPartition(v.Partition); c != nil {
			return c.name, true
		}
	}
	return "", false
}

func (p *Property) checkBounds(v types.Value) error {
	if p.min == nil && p.max == nil {
		return nil
	}
	var x types.Value = v
	if lengthMeasured(p.Type()) {
		x = types.Int32(types.Len(v))
	}
	if p.min != nil {
		if c, err := types.Compare(x, p.min); err == nil && c < 0 {
			return markf(ErrValidation, "field %s is less than min %s", p.FullName(), p.rawMin)
		}
	}
	if p.max != nil {
		if c, err := types.Compare(x, p.max); err == nil && c > 0 {
			return markf(ErrValidation, "field %s is greater than max %s", p.FullName(), p.rawMax)
		}
	}
	return nil
}
