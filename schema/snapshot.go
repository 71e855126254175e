package schema

import (
	"regexp"
	"sort"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// Snapshot is an immutable copy of the catalog at one point in time.
// All of its methods are safe for concurrent use without locking.
type Snapshot struct {
	classes     map[string]*Class // by lower case name
	byPartition map[int32]*Class
	globals     []GlobalProperty
	indexes     map[string]*Index // by lower case name
	blobs       []int32
	conv        *types.Converter
}

// Class is a resolved, read-only view of a class.
type Class struct {
	name        string
	description string
	abstract    bool
	strict      bool
	selection   string
	custom      map[string]string

	parts []int32
	poly  []int32

	supers, subs       []*Class
	allSupers, allSubs []*Class

	declared []*Property
	props    map[string]*Property // own and inherited
	indexes  []*Index
}

// Property is a resolved, read-only view of a property.
type Property struct {
	global      GlobalProperty
	owner       *Class
	linkedType  types.Tag
	linkedClass string

	notNull, mandatory, readOnly bool

	min, max     types.Value
	rawMin       string
	rawMax       string
	defaultValue types.Value
	rawDefault   string
	regexp       *regexp.Regexp
	rawRegexp    string
	collate      string
	description  string
	custom       map[string]string
}

// Index is a read-only view of an index declaration.
type Index struct {
	Name       string
	Class      string
	Type       store.IndexType
	Fields     []string
	Partitions []int32
}

func (c *Catalog) buildSnapshot() *Snapshot {
	s := &Snapshot{
		classes:     make(map[string]*Class, len(c.classes)),
		byPartition: make(map[int32]*Class, len(c.partOwner)),
		globals:     c.globals.entries(),
		indexes:     make(map[string]*Index, len(c.indexes)),
		blobs:       c.blobPartitionsLocked(),
		conv:        c.conv,
	}
	views := make(map[*class]*Class, len(c.classes))
	for key, cl := range c.classes {
		v := &Class{
			name:        cl.name,
			description: cl.description,
			abstract:    cl.abstract,
			strict:      cl.strict,
			selection:   cl.selection,
			custom:      cloneCustom(cl.custom),
			parts:       clonePartitions(cl.parts),
			poly:        clonePartitions(cl.poly),
		}
		views[cl] = v
		s.classes[key] = v
		for _, pid := range cl.parts {
			s.byPartition[pid] = v
		}
	}
	for cl, v := range views {
		v.supers = viewsOf(views, cl.supers)
		v.subs = viewsOf(views, cl.subs)
		v.allSupers = viewsOf(views, cl.ancestors())
		v.allSubs = viewsOf(views, cl.descendants())
		for _, p := range cl.props {
			v.declared = append(v.declared, c.propertyView(p, v))
		}
		sort.Slice(v.declared, func(i, j int) bool { return v.declared[i].Name() < v.declared[j].Name() })
	}
	// inherited properties resolve to the view of the declaring class
	for cl, v := range views {
		all := cl.allProperties()
		v.props = make(map[string]*Property, len(all))
		for n, p := range all {
			v.props[n] = views[p.owner].declaredProperty(n)
		}
	}
	for key, idx := range c.indexes {
		iv := &Index{
			Name:       idx.name,
			Class:      idx.class.name,
			Type:       idx.typ,
			Fields:     append([]string(nil), idx.fields...),
			Partitions: idx.partitions(),
		}
		s.indexes[key] = iv
		owner := views[idx.class]
		owner.indexes = append(owner.indexes, iv)
		for _, d := range idx.class.descendants() {
			views[d].indexes = append(views[d].indexes, iv)
		}
	}
	for _, v := range views {
		sort.Slice(v.indexes, func(i, j int) bool { return v.indexes[i].Name < v.indexes[j].Name })
	}
	return s
}

func viewsOf(views map[*class]*Class, list []*class) []*Class {
	if len(list) == 0 {
		return nil
	}
	out := make([]*Class, 0, len(list))
	for _, c := range list {
		out = append(out, views[c])
	}
	return out
}

func (c *Catalog) propertyView(p *property, owner *Class) *Property {
	v := &Property{
		global:      *p.global,
		owner:       owner,
		linkedType:  p.linkedType,
		linkedClass: p.linkedClassName(),
		notNull:     p.notNull,
		mandatory:   p.mandatory,
		readOnly:    p.readOnly,
		rawMin:      p.min,
		rawMax:      p.max,
		rawDefault:  p.defaultValue,
		rawRegexp:   p.regexp,
		collate:     p.collate,
		description: p.description,
		custom:      cloneCustom(p.custom),
	}
	// attributes were checked when set; an unsafe type change may leave
	// some that no longer parse, those are ignored
	v.min, _ = parseBound(c.conv, p.tag(), p.min)
	v.max, _ = parseBound(c.conv, p.tag(), p.max)
	if p.defaultValue != "" {
		v.defaultValue, _ = c.conv.Convert(types.Text(p.defaultValue), p.tag(), p.linkedType, v.linkedClass)
	}
	if p.regexp != "" {
		v.regexp, _ = regexp.Compile("^(?:" + p.regexp + ")$")
	}
	return v
}

// Class returns a class by its case-insensitive name, or nil.
func (s *Snapshot) Class(name string) *Class { return s.classes[lower(name)] }

// ExistsClass reports if a class is defined.
func (s *Snapshot) ExistsClass(name string) bool { return s.Class(name) != nil }

// Classes returns all classes sorted by name.
func (s *Snapshot) Classes() []*Class {
	out := make([]*Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sortClasses(out)
	return out
}

// ClassByPartition returns the class owning a partition, or nil.
func (s *Snapshot) ClassByPartition(pid int32) *Class { return s.byPartition[pid] }

// GlobalProperty returns a global property by id.
func (s *Snapshot) GlobalProperty(id uint32) (GlobalProperty, bool) {
	if int(id) >= len(s.globals) {
		return GlobalProperty{}, false
	}
	return s.globals[id], true
}

// GlobalProperties returns the global property table in id order.
func (s *Snapshot) GlobalProperties() []GlobalProperty {
	return append([]GlobalProperty(nil), s.globals...)
}

// Index returns an index by its case-insensitive name, or nil.
func (s *Snapshot) Index(name string) *Index { return s.indexes[lower(name)] }

// Indexes returns all indexes sorted by name.
func (s *Snapshot) Indexes() []*Index {
	out := make([]*Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BlobPartitions returns the partitions holding raw binary records.
func (s *Snapshot) BlobPartitions() []int32 { return clonePartitions(s.blobs) }

// IsBlobPartition reports if a partition holds raw binary records.
func (s *Snapshot) IsBlobPartition(pid int32) bool {
	i := sort.Search(len(s.blobs), func(i int) bool { return s.blobs[i] >= pid })
	return i < len(s.blobs) && s.blobs[i] == pid
}

// Converter returns the value converter the snapshot was built with.
func (s *Snapshot) Converter() *types.Converter { return s.conv }

func sortClasses(list []*Class) {
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
}

func sortedCopy(list []*Class) []*Class {
	out := append([]*Class(nil), list...)
	sortClasses(out)
	return out
}

func (c *Class) Name() string               { return c.name }
func (c *Class) Description() string        { return c.description }
func (c *Class) IsAbstract() bool           { return c.abstract }
func (c *Class) IsStrict() bool             { return c.strict }
func (c *Class) PartitionSelection() string { return c.selection }

// Partitions returns the own partitions of the class.
func (c *Class) Partitions() []int32 { return clonePartitions(c.parts) }

// PolymorphicPartitions returns the partitions of the class and all of its
// subclasses.
func (c *Class) PolymorphicPartitions() []int32 { return clonePartitions(c.poly) }

// HasPartition reports if the class owns a partition.
func (c *Class) HasPartition(pid int32) bool {
	i := sort.Search(len(c.parts), func(i int) bool { return c.parts[i] >= pid })
	return i < len(c.parts) && c.parts[i] == pid
}

// SuperClasses returns the direct superclasses in declaration order.
func (c *Class) SuperClasses() []*Class { return append([]*Class(nil), c.supers...) }

// SubClasses returns the direct subclasses sorted by name.
func (c *Class) SubClasses() []*Class { return sortedCopy(c.subs) }

// AllSuperClasses returns all ancestors sorted by name.
func (c *Class) AllSuperClasses() []*Class { return sortedCopy(c.allSupers) }

// AllSubClasses returns all descendants sorted by name.
func (c *Class) AllSubClasses() []*Class { return sortedCopy(c.allSubs) }

// IsSubClassOf reports if the class is o or inherits from it.
func (c *Class) IsSubClassOf(o *Class) bool {
	if o == nil {
		return false
	}
	if c == o {
		return true
	}
	for _, a := range c.allSupers {
		if a == o {
			return true
		}
	}
	return false
}

// IsSubClassOfName is IsSubClassOf by case-insensitive name.
func (c *Class) IsSubClassOfName(name string) bool {
	if lower(c.name) == lower(name) {
		return true
	}
	for _, a := range c.allSupers {
		if lower(a.name) == lower(name) {
			return true
		}
	}
	return false
}

func (c *Class) IsSuperClassOf(o *Class) bool { return o != nil && o.IsSubClassOf(c) }

func (c *Class) IsVertexType() bool { return c.IsSubClassOfName(VertexClass) }
func (c *Class) IsEdgeType() bool   { return c.IsSubClassOfName(EdgeClass) }

func (c *Class) declaredProperty(name string) *Property {
	for _, p := range c.declared {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Property returns an own or inherited property, or nil.
func (c *Class) Property(name string) *Property { return c.props[name] }

// Properties returns own and inherited properties sorted by name.
func (c *Class) Properties() []*Property {
	out := make([]*Property, 0, len(c.props))
	for _, p := range c.props {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DeclaredProperties returns the properties declared on the class itself.
func (c *Class) DeclaredProperties() []*Property { return append([]*Property(nil), c.declared...) }

// Indexes returns the indexes of the class and of its ancestors.
func (c *Class) Indexes() []*Index { return append([]*Index(nil), c.indexes...) }

// InvolvedIndexes returns the indexes of the class whose leading fields
// are exactly the given fields, in any order.
func (c *Class) InvolvedIndexes(fields ...string) []*Index {
	if len(fields) == 0 {
		return nil
	}
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[lower(f)] = true
	}
	var out []*Index
	for _, idx := range c.indexes {
		if len(idx.Fields) < len(want) {
			continue
		}
		match := true
		for _, f := range idx.Fields[:len(want)] {
			if !want[lower(f)] {
				match = false
				break
			}
		}
		if match {
			out = append(out, idx)
		}
	}
	return out
}

// AreIndexed reports if some index of the class starts with the given
// fields.
func (c *Class) AreIndexed(fields ...string) bool { return len(c.InvolvedIndexes(fields...)) != 0 }

// IndexedProperties returns the properties of the class used by one of its
// indexes, sorted by name.
func (c *Class) IndexedProperties() []*Property {
	seen := make(map[string]bool)
	var out []*Property
	for _, idx := range c.indexes {
		for _, f := range idx.Fields {
			p := c.props[f]
			if p == nil || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Custom returns a custom attribute.
func (c *Class) Custom(key string) (string, bool) {
	v, ok := c.custom[key]
	return v, ok
}

// CustomKeys returns the custom attribute keys sorted.
func (c *Class) CustomKeys() []string { return sortedKeys(c.custom) }

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Class) String() string { return c.name }

func (p *Property) Name() string          { return p.global.Name }
func (p *Property) Type() types.Tag       { return p.global.Type }
func (p *Property) ID() uint32            { return p.global.ID }
func (p *Property) Owner() *Class         { return p.owner }
func (p *Property) LinkedType() types.Tag { return p.linkedType }
func (p *Property) LinkedClass() string   { return p.linkedClass }
func (p *Property) IsNotNull() bool       { return p.notNull }
func (p *Property) IsMandatory() bool     { return p.mandatory }
func (p *Property) IsReadOnly() bool      { return p.readOnly }
func (p *Property) Collate() string       { return p.collate }
func (p *Property) Description() string   { return p.description }
func (p *Property) FullName() string      { return p.owner.name + "." + p.global.Name }

// Min returns the lower bound as text, "" if unset.
func (p *Property) Min() string { return p.rawMin }

// Max returns the upper bound as text, "" if unset.
func (p *Property) Max() string { return p.rawMax }

// Default returns the default value as text, "" if unset.
func (p *Property) Default() string { return p.rawDefault }

// DefaultValue returns the default converted to the property type.
func (p *Property) DefaultValue() types.Value {
	if p.defaultValue == nil {
		return nil
	}
	return types.Copy(p.defaultValue)
}

// Regexp returns the pattern values must fully match, "" if unset.
func (p *Property) Regexp() string { return p.rawRegexp }

func (p *Property) Custom(key string) (string, bool) {
	v, ok := p.custom[key]
	return v, ok
}

func (p *Property) CustomKeys() []string { return sortedKeys(p.custom) }
