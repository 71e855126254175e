// Package exporter writes a schema snapshot as RDF quads or JSON.
package exporter

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
	"github.com/cayleygraph/quad/voc/rdfs"

	"github.com/cayleygraph/catalog/schema"
)

// DefaultNamespace prefixes the IRIs of exported schema objects.
const DefaultNamespace = "urn:catalog:"

var (
	iriType     = quad.IRI(rdf.Type).Full()
	iriProperty = quad.IRI(rdf.Property).Full()
	iriClass    = quad.IRI(rdfs.Class).Full()
	iriSubClass = quad.IRI(rdfs.SubClassOf).Full()
	iriLabel    = quad.IRI(rdfs.Label).Full()
	iriComment  = quad.IRI(rdfs.Comment).Full()
	iriDomain   = quad.IRI(rdfs.Domain).Full()
	iriRange    = quad.IRI(rdfs.Range).Full()
)

// Exporter writes schema objects to a quad writer. The first error stops
// all further writes and is returned by Err.
type Exporter struct {
	w     quad.Writer
	ns    string
	label quad.Value
	err   error
	count int
}

func NewExporter(w quad.Writer, ns string) *Exporter {
	if ns == "" {
		ns = DefaultNamespace
	}
	return &Exporter{w: w, ns: ns}
}

// SetLabel sets the graph label of written quads.
func (exp *Exporter) SetLabel(v quad.Value) { exp.label = v }

// Count returns the number of quads written.
func (exp *Exporter) Count() int { return exp.count }

func (exp *Exporter) Err() error { return exp.err }

func (exp *Exporter) iri(kind, name string) quad.IRI {
	return quad.IRI(exp.ns + kind + ":" + name)
}

func (exp *Exporter) ClassIRI(name string) quad.IRI { return exp.iri("class", name) }

func (exp *Exporter) PropertyIRI(p *schema.Property) quad.IRI {
	return exp.iri("property", p.FullName())
}

func (exp *Exporter) write(s, p, o quad.Value) {
	if exp.err != nil || o == nil {
		return
	}
	exp.err = exp.w.WriteQuad(quad.Quad{Subject: s, Predicate: p, Object: o, Label: exp.label})
	if exp.err == nil {
		exp.count++
	}
}

func (exp *Exporter) writeString(s, p quad.Value, v string) {
	if v != "" {
		exp.write(s, p, quad.String(v))
	}
}

func (exp *Exporter) writeFlag(s, p quad.Value, v bool) {
	if v {
		exp.write(s, p, quad.Bool(true))
	}
}

// ExportSnapshot writes every class, property and index of a snapshot.
func (exp *Exporter) ExportSnapshot(snap *schema.Snapshot) error {
	for _, c := range snap.Classes() {
		exp.ExportClass(c)
	}
	for _, idx := range snap.Indexes() {
		exp.ExportIndex(idx)
	}
	return exp.err
}

// ExportClass writes a class with its declared properties.
func (exp *Exporter) ExportClass(c *schema.Class) {
	id := exp.ClassIRI(c.Name())
	exp.write(id, iriType, iriClass)
	exp.write(id, iriLabel, quad.String(c.Name()))
	exp.writeString(id, iriComment, c.Description())
	for _, s := range c.SuperClasses() {
		exp.write(id, iriSubClass, exp.ClassIRI(s.Name()))
	}
	exp.writeFlag(id, exp.iri("attr", "abstract"), c.IsAbstract())
	exp.writeFlag(id, exp.iri("attr", "strict"), c.IsStrict())
	for _, pid := range c.Partitions() {
		exp.write(id, exp.iri("attr", "partition"), quad.Int(pid))
	}
	for _, k := range c.CustomKeys() {
		v, _ := c.Custom(k)
		exp.write(id, exp.iri("custom", k), quad.String(v))
	}
	for _, p := range c.DeclaredProperties() {
		exp.exportProperty(id, p)
	}
}

func (exp *Exporter) exportProperty(class quad.IRI, p *schema.Property) {
	id := exp.PropertyIRI(p)
	exp.write(id, iriType, iriProperty)
	exp.write(id, iriLabel, quad.String(p.Name()))
	exp.write(id, iriDomain, class)
	if p.LinkedClass() != "" {
		exp.write(id, iriRange, exp.ClassIRI(p.LinkedClass()))
	} else {
		exp.write(id, iriRange, exp.iri("type", p.Type().String()))
	}
	exp.writeString(id, iriComment, p.Description())
	exp.write(id, exp.iri("attr", "type"), quad.String(p.Type().String()))
	exp.write(id, exp.iri("attr", "global"), quad.Int(p.ID()))
	if p.LinkedType().Valid() {
		exp.write(id, exp.iri("attr", "linkedType"), quad.String(p.LinkedType().String()))
	}
	exp.writeFlag(id, exp.iri("attr", "mandatory"), p.IsMandatory())
	exp.writeFlag(id, exp.iri("attr", "notNull"), p.IsNotNull())
	exp.writeFlag(id, exp.iri("attr", "readOnly"), p.IsReadOnly())
	exp.writeString(id, exp.iri("attr", "min"), p.Min())
	exp.writeString(id, exp.iri("attr", "max"), p.Max())
	exp.writeString(id, exp.iri("attr", "default"), p.Default())
	exp.writeString(id, exp.iri("attr", "regexp"), p.Regexp())
	exp.writeString(id, exp.iri("attr", "collate"), p.Collate())
	for _, k := range p.CustomKeys() {
		v, _ := p.Custom(k)
		exp.write(id, exp.iri("custom", k), quad.String(v))
	}
}

// ExportIndex writes an index declaration.
func (exp *Exporter) ExportIndex(idx *schema.Index) {
	id := exp.iri("index", idx.Name)
	exp.write(id, iriType, exp.iri("type", "Index"))
	exp.write(id, iriLabel, quad.String(idx.Name))
	exp.write(id, exp.iri("attr", "class"), exp.ClassIRI(idx.Class))
	exp.write(id, exp.iri("attr", "indexType"), quad.String(string(idx.Type)))
	for i, f := range idx.Fields {
		exp.write(id, exp.iri("attr", "field"+strconv.Itoa(i)), quad.String(f))
	}
}

// ExportJSON writes the definition of a catalog as indented JSON.
func ExportJSON(w io.Writer, def *schema.Definition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(def)
}
