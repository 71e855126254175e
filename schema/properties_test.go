package schema_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/store/memstore"
	"github.com/cayleygraph/catalog/types"
)

func quietCatalog() *schema.Catalog {
	s := memstore.New()
	o := schema.DefaultOptions()
	o.GraphRoots = false
	c, err := schema.New(context.TODO(), schema.Deps{Records: s}, o)
	if err != nil {
		panic(err)
	}
	return c
}

// polymorphicHolds checks that every class covers exactly its own
// partitions and those of all its subclasses.
func polymorphicHolds(snap *schema.Snapshot) bool {
	for _, c := range snap.Classes() {
		set := make(map[int32]bool)
		for _, pid := range c.Partitions() {
			set[pid] = true
		}
		for _, sub := range c.AllSubClasses() {
			for _, pid := range sub.Partitions() {
				set[pid] = true
			}
		}
		want := make([]int32, 0, len(set))
		for pid := range set {
			want = append(want, pid)
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		got := c.PolymorphicPartitions()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
	}
	return true
}

func TestPolymorphicPartitionsProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("polymorphic partitions are the union over subclasses", prop.ForAll(
		func(parents []int, sizes []int, edits []int) bool {
			ctx := context.TODO()
			c := quietCatalog()
			for i := range parents {
				opts := schema.ClassOptions{Partitions: sizes[i]}
				if sizes[i] == 0 {
					opts.Abstract = true
				}
				if p := parents[i] % (i + 1); p != i {
					opts.SuperClasses = []string{fmt.Sprint("C", p)}
				}
				if err := c.CreateClass(ctx, fmt.Sprint("C", i), opts); err != nil {
					return false
				}
			}
			if !polymorphicHolds(c.Snapshot()) {
				return false
			}
			// rewire some classes; rejected edits leave the catalog as is
			n := len(parents)
			for _, e := range edits {
				sub, super := fmt.Sprint("C", e%n), fmt.Sprint("C", (e/n)%n)
				if e%3 == 0 {
					_ = c.RemoveSuperClass(ctx, sub, super)
				} else {
					_ = c.AddSuperClass(ctx, sub, super)
				}
				if !polymorphicHolds(c.Snapshot()) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 100)),
		gen.SliceOfN(8, gen.IntRange(0, 3)),
		gen.SliceOfN(6, gen.IntRange(0, 1000)),
	))
	properties.TestingRun(t)
}

var propertyTags = []types.Tag{types.String, types.Integer, types.Long, types.Boolean}

func TestGlobalPropertyProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("equal name and type share an id", prop.ForAll(
		func(names []int, tags []int) bool {
			ctx := context.TODO()
			c := quietCatalog()
			type pair struct {
				name string
				tag  types.Tag
			}
			var pairs []pair
			for i := range names {
				p := pair{name: fmt.Sprint("p", names[i]), tag: propertyTags[tags[i]%len(propertyTags)]}
				class := fmt.Sprint("C", i)
				if c.CreateClass(ctx, class, schema.ClassOptions{}) != nil {
					return false
				}
				if c.CreateProperty(ctx, class, p.name, p.tag, schema.PropertyOptions{}) != nil {
					return false
				}
				pairs = append(pairs, p)
			}
			snap := c.Snapshot()
			ids := make(map[pair]uint32)
			for i, p := range pairs {
				id := snap.Class(fmt.Sprint("C", i)).Property(p.name).ID()
				if old, ok := ids[p]; ok && old != id {
					return false
				}
				ids[p] = id
			}
			globals := snap.GlobalProperties()
			if len(globals) != len(ids) {
				return false
			}
			for i, g := range globals {
				if g.ID != uint32(i) || ids[pair{g.Name, g.Type}] != g.ID {
					return false
				}
			}
			// ids survive a reload
			l, err := schema.Load(ctx, c.Definition(), schema.Deps{Records: memstore.New()}, schema.DefaultOptions())
			if err != nil {
				return false
			}
			for i, p := range pairs {
				if l.Snapshot().Class(fmt.Sprint("C", i)).Property(p.name).ID() != ids[p] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 4)),
		gen.SliceOfN(12, gen.IntRange(0, 7)),
	))
	properties.TestingRun(t)
}
