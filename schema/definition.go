package schema

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// definitionKey is the meta key the definition is persisted under.
const definitionKey = "schema"

const definitionVersion = 1

// Definition is the serializable form of a catalog. Lists are sorted, so
// equal catalogs produce equal definitions.
type Definition struct {
	Version int              `json:"version"`
	Globals []GlobalProperty `json:"globals"`
	Classes []ClassDef       `json:"classes"`
	Indexes []IndexDef       `json:"indexes,omitempty"`
	Blobs   []int32          `json:"blob_partitions,omitempty"`
}

type ClassDef struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Abstract     bool              `json:"abstract,omitempty"`
	Strict       bool              `json:"strict,omitempty"`
	SuperClasses []string          `json:"superclasses,omitempty"`
	Partitions   []int32           `json:"partitions,omitempty"`
	Selection    string            `json:"selection,omitempty"`
	Custom       map[string]string `json:"custom,omitempty"`
	Properties   []PropertyDef     `json:"properties,omitempty"`
}

type PropertyDef struct {
	Name        string            `json:"name"`
	Type        types.Tag         `json:"type"`
	GlobalID    uint32            `json:"global_id"`
	LinkedType  types.Tag         `json:"linked_type,omitempty"`
	LinkedClass string            `json:"linked_class,omitempty"`
	Mandatory   bool              `json:"mandatory,omitempty"`
	NotNull     bool              `json:"not_null,omitempty"`
	ReadOnly    bool              `json:"read_only,omitempty"`
	Min         string            `json:"min,omitempty"`
	Max         string            `json:"max,omitempty"`
	Default     string            `json:"default,omitempty"`
	Regexp      string            `json:"regexp,omitempty"`
	Collate     string            `json:"collate,omitempty"`
	Description string            `json:"description,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

type IndexDef struct {
	Name       string          `json:"name"`
	Class      string          `json:"class"`
	Type       store.IndexType `json:"type"`
	Fields     []string        `json:"fields"`
	Partitions []int32         `json:"partitions,omitempty"`
	Excluded   []int32         `json:"excluded,omitempty"`
}

func (d *Definition) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

func UnmarshalDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "schema: cannot decode definition")
	}
	if d.Version > definitionVersion {
		return nil, errors.Newf("schema: definition version %d is not supported", d.Version)
	}
	return &d, nil
}

// Definition returns the serializable form of the catalog.
func (c *Catalog) Definition() *Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definitionLocked()
}

func (c *Catalog) definitionLocked() *Definition {
	d := &Definition{
		Version: definitionVersion,
		Globals: c.globals.entries(),
		Classes: make([]ClassDef, 0, len(c.classes)),
		Blobs:   c.blobPartitionsLocked(),
	}
	if len(d.Blobs) == 0 {
		d.Blobs = nil
	}
	for _, cl := range c.classes {
		cd := ClassDef{
			Name:        cl.name,
			Description: cl.description,
			Abstract:    cl.abstract,
			Strict:      cl.strict,
			Partitions:  clonePartitions(cl.parts),
			Selection:   cl.selection,
			Custom:      cloneCustom(cl.custom),
		}
		for _, s := range cl.supers {
			cd.SuperClasses = append(cd.SuperClasses, s.name)
		}
		for _, p := range cl.props {
			cd.Properties = append(cd.Properties, PropertyDef{
				Name:        p.name(),
				Type:        p.tag(),
				GlobalID:    p.global.ID,
				LinkedType:  p.linkedType,
				LinkedClass: p.linkedClassName(),
				Mandatory:   p.mandatory,
				NotNull:     p.notNull,
				ReadOnly:    p.readOnly,
				Min:         p.min,
				Max:         p.max,
				Default:     p.defaultValue,
				Regexp:      p.regexp,
				Collate:     p.collate,
				Description: p.description,
				Custom:      cloneCustom(p.custom),
			})
		}
		sort.Slice(cd.Properties, func(i, j int) bool { return cd.Properties[i].Name < cd.Properties[j].Name })
		d.Classes = append(d.Classes, cd)
	}
	sort.Slice(d.Classes, func(i, j int) bool { return d.Classes[i].Name < d.Classes[j].Name })
	for _, idx := range c.sortedIndexes() {
		id := IndexDef{
			Name:       idx.name,
			Class:      idx.class.name,
			Type:       idx.typ,
			Fields:     append([]string(nil), idx.fields...),
			Partitions: idx.partitions(),
		}
		for pid := range idx.excluded {
			id.Excluded = append(id.Excluded, pid)
		}
		sortPartitions(id.Excluded)
		d.Indexes = append(d.Indexes, id)
	}
	return d
}

// Load rebuilds a catalog from a definition. The stores in deps are not
// modified.
func Load(ctx context.Context, def *Definition, deps Deps, opts Options) (*Catalog, error) {
	c, err := newCatalog(deps, opts)
	if err != nil {
		return nil, err
	}
	if err := c.globals.restore(def.Globals); err != nil {
		return nil, err
	}
	all := make([]*class, 0, len(def.Classes))
	for _, cd := range def.Classes {
		if err := checkClassName(cd.Name); err != nil {
			return nil, err
		}
		if _, ok := c.classes[lower(cd.Name)]; ok {
			return nil, markf(ErrNameConflict, "class %q is defined twice", cd.Name)
		}
		cl := newClass(cd.Name)
		cl.description = cd.Description
		cl.abstract = cd.Abstract
		cl.strict = cd.Strict
		cl.custom = cloneCustom(cd.Custom)
		if cd.Selection != "" {
			if err := checkSelection(cd.Selection); err != nil {
				return nil, err
			}
			cl.selection = cd.Selection
		}
		cl.parts = clonePartitions(cd.Partitions)
		sortPartitions(cl.parts)
		for _, pid := range cl.parts {
			if owner, ok := c.partOwner[pid]; ok {
				return nil, markf(ErrIllegalState, "partition %d is owned by %q and %q", pid, owner.name, cl.name)
			}
			c.partOwner[pid] = cl
		}
		c.classes[lower(cl.name)] = cl
		all = append(all, cl)
	}
	for i, cd := range def.Classes {
		cl := all[i]
		for _, name := range cd.SuperClasses {
			s, err := c.classLocked(name)
			if err != nil {
				return nil, errors.Wrapf(err, "superclass of %q", cl.name)
			}
			if s.isSubClassOf(cl) {
				return nil, markf(ErrCyclicInheritance, "class %q cannot extend %q", cl.name, s.name)
			}
			link(cl, s)
		}
	}
	for i, cd := range def.Classes {
		cl := all[i]
		for _, pd := range cd.Properties {
			p, err := c.loadProperty(cl, pd)
			if err != nil {
				return nil, err
			}
			cl.props[p.name()] = p
		}
	}
	refreshPolymorphic(all...)
	for _, pid := range def.Blobs {
		if owner, ok := c.partOwner[pid]; ok {
			return nil, markf(ErrIllegalState, "blob partition %d is owned by %q", pid, owner.name)
		}
		c.blobs[pid] = true
	}
	for _, id := range def.Indexes {
		cl, err := c.classLocked(id.Class)
		if err != nil {
			return nil, errors.Wrapf(err, "index %q", id.Name)
		}
		typ, err := checkIndexType(id.Type)
		if err != nil {
			return nil, err
		}
		if _, ok := c.indexes[lower(id.Name)]; ok {
			return nil, markf(ErrNameConflict, "index %q is defined twice", id.Name)
		}
		c.indexes[lower(id.Name)] = &index{
			name:      id.Name,
			class:     cl,
			className: cl.name,
			typ:       typ,
			fields:    append([]string(nil), id.Fields...),
			parts:     partitionSet(id.Partitions),
			excluded:  partitionSet(id.Excluded),
		}
	}
	return c, nil
}

func (c *Catalog) loadProperty(cl *class, pd PropertyDef) (*property, error) {
	if err := checkPropertyName(pd.Name); err != nil {
		return nil, err
	}
	g, ok := c.globals.get(pd.GlobalID)
	if !ok || g.Name != pd.Name || g.Type != pd.Type {
		return nil, markf(ErrIllegalState, "property %s.%s does not match global property %d", cl.name, pd.Name, pd.GlobalID)
	}
	if err := checkLinked(pd.Type, pd.LinkedType, pd.LinkedClass); err != nil {
		return nil, err
	}
	p := &property{
		global:       g,
		owner:        cl,
		linkedType:   pd.LinkedType,
		notNull:      pd.NotNull,
		mandatory:    pd.Mandatory,
		readOnly:     pd.ReadOnly,
		min:          pd.Min,
		max:          pd.Max,
		defaultValue: pd.Default,
		regexp:       pd.Regexp,
		collate:      pd.Collate,
		description:  pd.Description,
		custom:       cloneCustom(pd.Custom),
	}
	if pd.LinkedClass != "" {
		lc, err := c.classLocked(pd.LinkedClass)
		if err != nil {
			return nil, errors.Wrapf(err, "linked class of %s", p.fullName())
		}
		p.linkedClass = lc
	}
	return p, nil
}
