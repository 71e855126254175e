package schema

import "github.com/cayleygraph/catalog/types"

// GlobalProperty is an interned (name, type) pair. Its id is referenced by
// stored records and never changes.
type GlobalProperty struct {
	ID   uint32    `json:"id"`
	Name string    `json:"name"`
	Type types.Tag `json:"type"`
}

type globalKey struct {
	name string
	tag  types.Tag
}

// globalTable is append-only. Mutations happen under the catalog write lock.
type globalTable struct {
	list  []*GlobalProperty
	byKey map[globalKey]*GlobalProperty
}

func newGlobalTable() *globalTable {
	return &globalTable{byKey: make(map[globalKey]*GlobalProperty)}
}

func (g *globalTable) findOrCreate(name string, tag types.Tag) *GlobalProperty {
	k := globalKey{name: name, tag: tag}
	if p, ok := g.byKey[k]; ok {
		return p
	}
	p := &GlobalProperty{ID: uint32(len(g.list)), Name: name, Type: tag}
	g.list = append(g.list, p)
	g.byKey[k] = p
	return p
}

func (g *globalTable) get(id uint32) (*GlobalProperty, bool) {
	if int(id) >= len(g.list) {
		return nil, false
	}
	return g.list[id], true
}

// restore appends entries loaded from a definition. Ids must be dense.
func (g *globalTable) restore(list []GlobalProperty) error {
	for i, p := range list {
		if p.ID != uint32(i) {
			return markf(ErrIllegalState, "global property %q has id %d at position %d", p.Name, p.ID, i)
		}
		if !p.Type.Valid() {
			return markf(ErrInvalidName, "global property %q has invalid type", p.Name)
		}
		if got := g.findOrCreate(p.Name, p.Type); got.ID != p.ID {
			return markf(ErrNameConflict, "global property %q %v is declared twice", p.Name, p.Type)
		}
	}
	return nil
}

// entries returns a copy of the table in id order.
func (g *globalTable) entries() []GlobalProperty {
	out := make([]GlobalProperty, len(g.list))
	for i, p := range g.list {
		out[i] = *p
	}
	return out
}
