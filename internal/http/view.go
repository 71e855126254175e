package http

import (
	"github.com/cayleygraph/catalog/schema"
)

type ClassSummary struct {
	Name         string   `json:"name"`
	Abstract     bool     `json:"abstract,omitempty"`
	SuperClasses []string `json:"superclasses,omitempty"`
	Partitions   []int32  `json:"partitions"`
}

type ClassInfo struct {
	ClassSummary
	Description string            `json:"description,omitempty"`
	Strict      bool              `json:"strict,omitempty"`
	Selection   string            `json:"partition_selection"`
	SubClasses  []string          `json:"subclasses,omitempty"`
	Polymorphic []int32           `json:"polymorphic_partitions"`
	Vertex      bool              `json:"vertex,omitempty"`
	Edge        bool              `json:"edge,omitempty"`
	Properties  []PropertyInfo    `json:"properties,omitempty"`
	Indexes     []string          `json:"indexes,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

type PropertyInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ID          uint32 `json:"id"`
	Owner       string `json:"owner"`
	LinkedType  string `json:"linked_type,omitempty"`
	LinkedClass string `json:"linked_class,omitempty"`
	Mandatory   bool   `json:"mandatory,omitempty"`
	NotNull     bool   `json:"not_null,omitempty"`
	ReadOnly    bool   `json:"read_only,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
	Default     string `json:"default,omitempty"`
	Regexp      string `json:"regexp,omitempty"`
	Collate     string `json:"collate,omitempty"`
	Description string `json:"description,omitempty"`
}

type IndexInfo struct {
	Name       string   `json:"name"`
	Class      string   `json:"class"`
	Type       string   `json:"type"`
	Fields     []string `json:"fields"`
	Partitions []int32  `json:"partitions"`
}

func names(classes []*schema.Class) []string {
	if len(classes) == 0 {
		return nil
	}
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Name())
	}
	return out
}

func Summarize(c *schema.Class) ClassSummary {
	return ClassSummary{
		Name:         c.Name(),
		Abstract:     c.IsAbstract(),
		SuperClasses: names(c.SuperClasses()),
		Partitions:   c.Partitions(),
	}
}

// Describe lists a class with its own and inherited properties.
func Describe(c *schema.Class) ClassInfo {
	info := ClassInfo{
		ClassSummary: Summarize(c),
		Description:  c.Description(),
		Strict:       c.IsStrict(),
		Selection:    c.PartitionSelection(),
		SubClasses:   names(c.SubClasses()),
		Polymorphic:  c.PolymorphicPartitions(),
		Vertex:       c.IsVertexType(),
		Edge:         c.IsEdgeType(),
	}
	for _, p := range c.Properties() {
		pi := PropertyInfo{
			Name:        p.Name(),
			Type:        p.Type().String(),
			ID:          p.ID(),
			Owner:       p.Owner().Name(),
			LinkedClass: p.LinkedClass(),
			Mandatory:   p.IsMandatory(),
			NotNull:     p.IsNotNull(),
			ReadOnly:    p.IsReadOnly(),
			Min:         p.Min(),
			Max:         p.Max(),
			Default:     p.Default(),
			Regexp:      p.Regexp(),
			Collate:     p.Collate(),
			Description: p.Description(),
		}
		if lt := p.LinkedType(); lt.Valid() {
			pi.LinkedType = lt.String()
		}
		info.Properties = append(info.Properties, pi)
	}
	for _, idx := range c.Indexes() {
		info.Indexes = append(info.Indexes, idx.Name)
	}
	if keys := c.CustomKeys(); len(keys) > 0 {
		info.Custom = make(map[string]string, len(keys))
		for _, k := range keys {
			info.Custom[k], _ = c.Custom(k)
		}
	}
	return info
}
