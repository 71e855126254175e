package schema_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/migrate"
	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/memstore"
	"github.com/cayleygraph/catalog/types"
)

func newCatalog(t testing.TB, opts ...func(*schema.Options)) (*schema.Catalog, *memstore.Store) {
	s := memstore.New()
	o := schema.DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	c, err := schema.New(context.TODO(), schema.Deps{Records: s, Indexes: s, Meta: s}, o)
	require.NoError(t, err)
	c.SetMigrator(&migrate.Runner{Store: s, Partitions: c, BatchSize: 10})
	return c, s
}

func noRoots(o *schema.Options) { o.GraphRoots = false }

func save(t testing.TB, c *schema.Catalog, s store.RecordStore, class string, fields types.Map) types.RecordID {
	ctx := context.TODO()
	pid, err := c.NewRecordPartition(ctx, class)
	require.NoError(t, err)
	id, err := s.Save(ctx, &store.Record{
		ID:     types.RecordID{Partition: pid, Position: -1},
		Class:  class,
		Fields: fields,
	})
	require.NoError(t, err)
	return id
}

func load(t testing.TB, s store.RecordStore, id types.RecordID) *store.Record {
	rec, err := s.Load(context.TODO(), id)
	require.NoError(t, err)
	return rec
}

func TestCreateClassPartitions(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{Partitions: 2}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))

	snap := c.Snapshot()
	animal, dog := snap.Class("animal"), snap.Class("DOG")
	require.NotNil(t, animal)
	require.NotNil(t, dog)
	require.Equal(t, "Animal", animal.Name())
	require.Len(t, animal.Partitions(), 2)
	require.Len(t, dog.Partitions(), 1)

	poly := animal.PolymorphicPartitions()
	require.Len(t, poly, 3)
	require.Subset(t, poly, dog.Partitions())
	require.Equal(t, dog.Partitions(), dog.PolymorphicPartitions())

	require.True(t, dog.IsSubClassOf(animal))
	require.True(t, animal.IsSuperClassOf(dog))
	require.False(t, animal.IsSubClassOf(dog))
	require.Equal(t, []*schema.Class{dog}, animal.SubClasses())

	owner, ok := c.PartitionOwner(dog.Partitions()[0])
	require.True(t, ok)
	require.Equal(t, "Dog", owner)
	require.Same(t, dog, snap.ClassByPartition(dog.Partitions()[0]))

	live, err := c.PolymorphicPartitions("animal")
	require.NoError(t, err)
	require.Equal(t, poly, live)
}

func TestCreateClassErrors(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))

	for _, name := range []string{"", "bad name", "a:b", "1st", "x.y"} {
		err := c.CreateClass(ctx, name, schema.ClassOptions{})
		require.ErrorIs(t, err, schema.ErrInvalidName, "%q", name)
	}
	err := c.CreateClass(ctx, "ANIMAL", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrNameConflict)

	err = c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Nope"}})
	require.ErrorIs(t, err, schema.ErrNotFound)
	require.False(t, c.ExistsClass("Dog"))
}

func TestPrepareRecordConverts(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "kind", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.AlterProperty(ctx, "Animal", "kind", schema.PropertyDefault, "cat"))

	in := types.Map{"age": types.Text("7"), "extra": types.Bool(true)}
	out, err := c.Snapshot().PrepareRecord("Animal", in)
	require.NoError(t, err)
	require.Equal(t, types.Int32(7), out["age"])
	require.Equal(t, types.Text("cat"), out["kind"])
	require.Equal(t, types.Bool(true), out["extra"])
	require.Equal(t, types.Text("7"), in["age"], "input must not change")

	_, err = c.Snapshot().PrepareRecord("Animal", types.Map{"age": types.Text("seven")})
	require.ErrorIs(t, err, schema.ErrConversion)
	var ce *types.ConversionError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, types.Integer, ce.Tag)
}

func TestChangePropertyType(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	small := save(t, c, s, "Animal", types.Map{"age": types.Int32(5)})
	before := c.Snapshot().Class("Animal").Property("age").ID()

	// widening
	require.NoError(t, c.ChangePropertyType(ctx, "Animal", "age", types.Long, false))
	p := c.Snapshot().Class("Animal").Property("age")
	require.Equal(t, types.Long, p.Type())
	require.NotEqual(t, before, p.ID())
	require.Equal(t, types.Int64(5), load(t, s, small).Fields["age"])

	// unrelated types
	err := c.ChangePropertyType(ctx, "Animal", "age", types.String, false)
	require.ErrorIs(t, err, schema.ErrTypeConflict)

	big := save(t, c, s, "Animal", types.Map{"age": types.Int64(9999999999)})

	// narrowing over stored long values
	err = c.ChangePropertyType(ctx, "Animal", "age", types.Integer, false)
	require.ErrorIs(t, err, schema.ErrConversion)
	var ce *types.ConversionError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, types.Integer, ce.Tag)
	require.Equal(t, types.Long, c.Snapshot().Class("Animal").Property("age").Type())

	require.NoError(t, c.ChangePropertyType(ctx, "Animal", "age", types.Integer, true))
	p = c.Snapshot().Class("Animal").Property("age")
	require.Equal(t, types.Integer, p.Type())
	require.Equal(t, before, p.ID(), "the (age, INTEGER) pair keeps its id")
	require.Equal(t, types.Int32(5), load(t, s, small).Fields["age"])
	require.Equal(t, types.Int64(9999999999), load(t, s, big).Fields["age"], "unconvertible values stay as they are")
}

type warnings struct {
	mu    sync.Mutex
	lines []string
}

func (w *warnings) Infof(format string, args ...interface{}) {}
func (w *warnings) Warningf(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}
func (w *warnings) Errorf(format string, args ...interface{}) {}
func (w *warnings) Fatalf(format string, args ...interface{}) {}

func TestChangePropertyTypeClearsStaleAttrs(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "weight", types.Long, schema.PropertyOptions{}))
	require.NoError(t, c.AlterProperty(ctx, "Animal", "weight", schema.PropertyMin, "1"))
	require.NoError(t, c.AlterProperty(ctx, "Animal", "weight", schema.PropertyMax, "9999999999"))
	require.NoError(t, c.AlterProperty(ctx, "Animal", "weight", schema.PropertyDefault, "9999999999"))

	w := &warnings{}
	prev := clog.Current()
	clog.SetLogger(w)
	defer clog.SetLogger(prev)

	require.NoError(t, c.ChangePropertyType(ctx, "Animal", "weight", types.Integer, false))
	p := c.Snapshot().Class("Animal").Property("weight")
	require.Equal(t, types.Integer, p.Type())
	require.Equal(t, "1", p.Min())
	require.Equal(t, "", p.Max())
	require.Equal(t, "", p.Default())

	require.Len(t, w.lines, 1)
	require.Contains(t, w.lines[0], "Animal.weight")
	require.Contains(t, w.lines[0], "max, default")
}

func TestCreatePropertyChecksStoredValues(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	save(t, c, s, "Dog", types.Map{"age": types.Text("old")})

	err := c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrConversion)
	require.Nil(t, c.Snapshot().Class("Animal").Property("age"))

	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{Unsafe: true}))
	require.NotNil(t, c.Snapshot().Class("Dog").Property("age"))
}

func TestCreatePropertyStoredCollectionsAndLinks(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	for _, name := range []string{"Person", "Car", "Dog"} {
		require.NoError(t, c.CreateClass(ctx, name, schema.ClassOptions{}))
	}
	require.NoError(t, c.CreateClass(ctx, "Owner", schema.ClassOptions{SuperClasses: []string{"Person"}}))
	ann := save(t, c, s, "Owner", types.Map{"name": types.Text("ann")})
	car := save(t, c, s, "Car", types.Map{"name": types.Text("beetle")})

	// an empty collection fits any collection type
	save(t, c, s, "Dog", types.Map{"friends": types.List{}})
	require.NoError(t, c.CreateProperty(ctx, "Dog", "friends", types.LinkList, schema.PropertyOptions{}))

	save(t, c, s, "Dog", types.Map{"owner": ann, "walkers": types.RefList{ann}})
	require.NoError(t, c.CreateProperty(ctx, "Dog", "walkers", types.LinkList, schema.PropertyOptions{LinkedClass: "Person"}))

	save(t, c, s, "Dog", types.Map{"owner": car})
	err := c.CreateProperty(ctx, "Dog", "owner", types.Link, schema.PropertyOptions{LinkedClass: "Person"})
	require.ErrorIs(t, err, schema.ErrValidation)
	require.Nil(t, c.Snapshot().Class("Dog").Property("owner"))

	require.NoError(t, c.CreateProperty(ctx, "Dog", "owner", types.Link, schema.PropertyOptions{}))
}

func TestPropertyErrors(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{}))

	err := c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrNameConflict)
	err = c.CreateProperty(ctx, "Animal", "a.b", types.String, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrInvalidName)
	err = c.CreateProperty(ctx, "Dog", "name", types.Integer, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrTypeConflict)
	err = c.CreateProperty(ctx, "Animal", "owner", types.Link, schema.PropertyOptions{LinkedClass: "Person"})
	require.ErrorIs(t, err, schema.ErrNotFound)
	err = c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{LinkedType: types.String})
	require.ErrorIs(t, err, schema.ErrTypeConflict)
	err = c.CreateProperty(ctx, "Nope", "age", types.Integer, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrNotFound)

	// a subclass declaration blocks a different type on the superclass
	require.NoError(t, c.CreateProperty(ctx, "Dog", "bark", types.String, schema.PropertyOptions{}))
	err = c.CreateProperty(ctx, "Animal", "bark", types.Integer, schema.PropertyOptions{})
	require.ErrorIs(t, err, schema.ErrTypeConflict)

	err = c.DropProperty(ctx, "Dog", "name")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.DropProperty(ctx, "Dog", "nope")
	require.ErrorIs(t, err, schema.ErrNotFound)

	require.NoError(t, c.CreateIndex(ctx, "Animal.name", "Animal", store.NotUnique, "name"))
	err = c.DropProperty(ctx, "Animal", "name")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	require.NoError(t, c.DropIndex(ctx, "animal.name"))
	require.NoError(t, c.DropProperty(ctx, "Animal", "name"))
	require.Nil(t, c.Snapshot().Class("Dog").Property("name"))
}

func TestRenameProperty(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Dog", "tail", types.Boolean, schema.PropertyOptions{}))
	id := save(t, c, s, "Dog", types.Map{"age": types.Int32(3)})

	err := c.RenameProperty(ctx, "Animal", "age", "tail")
	require.ErrorIs(t, err, schema.ErrNameConflict)

	require.NoError(t, c.AlterProperty(ctx, "Animal", "age", schema.PropertyName, "years"))
	dog := c.Snapshot().Class("Dog")
	require.Nil(t, dog.Property("age"))
	require.Equal(t, types.Integer, dog.Property("years").Type())

	rec := load(t, s, id)
	require.Equal(t, types.Map{"years": types.Int32(3)}, rec.Fields)
}

func TestRenameClass(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	id := save(t, c, s, "Animal", types.Map{})

	require.NoError(t, c.AlterClass(ctx, "animal", schema.ClassName, "Beast"))
	require.False(t, c.ExistsClass("Animal"))
	require.True(t, c.ExistsClass("beast"))
	require.Equal(t, "Beast", load(t, s, id).Class)

	require.NoError(t, c.CreateClass(ctx, "Plant", schema.ClassOptions{}))
	err := c.RenameClass(ctx, "Plant", "BEAST")
	require.ErrorIs(t, err, schema.ErrNameConflict)
	err = c.RenameClass(ctx, "V", "Vertex")
	require.ErrorIs(t, err, schema.ErrIllegalState)
}

func TestDropClass(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{Partitions: 2}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	parts := c.Snapshot().Class("Animal").Partitions()

	err := c.DropClass(ctx, "Animal")
	require.ErrorIs(t, err, schema.ErrIllegalState)

	require.NoError(t, c.DropClass(ctx, "Dog"))
	require.Equal(t, parts, c.Snapshot().Class("Animal").PolymorphicPartitions())
	require.NoError(t, c.DropClass(ctx, "Animal"))
	require.False(t, c.ExistsClass("Animal"))
	for _, pid := range parts {
		_, err := s.PartitionSize(ctx, pid)
		require.ErrorIs(t, err, store.ErrPartitionNotFound)
		_, ok := c.PartitionOwner(pid)
		require.False(t, ok)
	}

	err = c.DropClass(ctx, "Animal")
	require.ErrorIs(t, err, schema.ErrNotFound)
}

func TestDropLinkedClass(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Person", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "owner", types.Link, schema.PropertyOptions{LinkedClass: "person"}))
	require.Equal(t, "Person", c.Snapshot().Class("Animal").Property("owner").LinkedClass())

	err := c.DropClass(ctx, "Person")
	require.ErrorIs(t, err, schema.ErrIllegalState)
}

func TestCyclicInheritance(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "A", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "B", schema.ClassOptions{SuperClasses: []string{"A"}}))
	require.NoError(t, c.CreateClass(ctx, "C", schema.ClassOptions{SuperClasses: []string{"B"}}))

	err := c.AddSuperClass(ctx, "A", "C")
	require.ErrorIs(t, err, schema.ErrCyclicInheritance)
	err = c.AddSuperClass(ctx, "A", "A")
	require.ErrorIs(t, err, schema.ErrCyclicInheritance)
	err = c.SetSuperClasses(ctx, "A", []string{"C"})
	require.ErrorIs(t, err, schema.ErrCyclicInheritance)
	err = c.AddSuperClass(ctx, "C", "B")
	require.ErrorIs(t, err, schema.ErrIllegalState)

	require.Empty(t, c.Snapshot().Class("A").SuperClasses())
}

func TestSuperClassChanges(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "A", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "B", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "C", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "A", "name", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "B", "name", types.Integer, schema.PropertyOptions{}))

	err := c.CreateClass(ctx, "D", schema.ClassOptions{SuperClasses: []string{"A", "B"}})
	require.ErrorIs(t, err, schema.ErrTypeConflict)
	require.NoError(t, c.AddSuperClass(ctx, "C", "A"))
	err = c.AddSuperClass(ctx, "C", "B")
	require.ErrorIs(t, err, schema.ErrTypeConflict)

	a := c.Snapshot().Class("A")
	cp := c.Snapshot().Class("C").Partitions()
	require.Subset(t, a.PolymorphicPartitions(), cp)

	require.NoError(t, c.SetSuperClasses(ctx, "C", []string{"B"}))
	snap := c.Snapshot()
	require.NotSubset(t, snap.Class("A").PolymorphicPartitions(), cp)
	require.Subset(t, snap.Class("B").PolymorphicPartitions(), cp)
	require.Equal(t, types.Integer, snap.Class("C").Property("name").Type())

	err = c.RemoveSuperClass(ctx, "C", "A")
	require.ErrorIs(t, err, schema.ErrNotFound)
	require.NoError(t, c.RemoveSuperClass(ctx, "C", "B"))
	require.Equal(t, snap.Class("B").Partitions(), c.Snapshot().Class("B").PolymorphicPartitions())
}

func TestGraphRoots(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Person", schema.ClassOptions{SuperClasses: []string{"V"}}))
	require.NoError(t, c.CreateClass(ctx, "Knows", schema.ClassOptions{SuperClasses: []string{"E"}}))
	require.NoError(t, c.CreateClass(ctx, "Thing", schema.ClassOptions{}))

	snap := c.Snapshot()
	require.True(t, snap.Class("Person").IsVertexType())
	require.False(t, snap.Class("Person").IsEdgeType())
	require.True(t, snap.Class("Knows").IsEdgeType())
	require.False(t, snap.Class("Thing").IsVertexType())

	err := c.AddSuperClass(ctx, "Thing", "V")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.RemoveSuperClass(ctx, "Person", "V")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.SetSuperClasses(ctx, "Person", nil)
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.SetSuperClasses(ctx, "Thing", []string{"Person"})
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.CreateClass(ctx, "Both", schema.ClassOptions{SuperClasses: []string{"Person", "Knows"}})
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.DropClass(ctx, "V")
	require.ErrorIs(t, err, schema.ErrIllegalState)

	require.NoError(t, c.CreateClass(ctx, "Employee", schema.ClassOptions{}))
	require.NoError(t, c.SetSuperClasses(ctx, "Employee", nil))
	require.NoError(t, c.CreateClass(ctx, "Manager", schema.ClassOptions{SuperClasses: []string{"Person"}}))
	require.NoError(t, c.SetSuperClasses(ctx, "Manager", []string{"V"}))
}

func TestSetAbstract(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Shape", schema.ClassOptions{Abstract: true}))
	require.Empty(t, c.Snapshot().Class("Shape").Partitions())

	_, err := c.NewRecordPartition(ctx, "Shape")
	require.ErrorIs(t, err, schema.ErrIllegalState)

	id := save(t, c, s, "Animal", types.Map{})
	err = c.SetAbstract(ctx, "Animal", true)
	require.ErrorIs(t, err, schema.ErrIllegalState)
	require.NoError(t, s.Delete(ctx, id))
	parts := c.Snapshot().Class("Animal").Partitions()
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassAbstract, "true"))
	require.True(t, c.Snapshot().Class("Animal").IsAbstract())
	_, err = s.PartitionSize(ctx, parts[0])
	require.ErrorIs(t, err, store.ErrPartitionNotFound)

	require.NoError(t, c.SetAbstract(ctx, "Shape", false))
	require.Len(t, c.Snapshot().Class("Shape").Partitions(), 1)
}

func TestNewRecordPartition(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{Partitions: 3}))
	parts := c.Snapshot().Class("Animal").Partitions()

	seen := make(map[int32]int)
	for i := 0; i < 6; i++ {
		pid, err := c.NewRecordPartition(ctx, "Animal")
		require.NoError(t, err)
		seen[pid]++
	}
	require.Equal(t, map[int32]int{parts[0]: 2, parts[1]: 2, parts[2]: 2}, seen)

	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassPartitionSelection, "default"))
	pid, err := c.NewRecordPartition(ctx, "Animal")
	require.NoError(t, err)
	require.Equal(t, parts[0], pid)

	for i := 0; i < 2; i++ {
		_, err := s.Save(ctx, &store.Record{ID: types.RecordID{Partition: parts[0], Position: -1}, Class: "Animal"})
		require.NoError(t, err)
	}
	_, err = s.Save(ctx, &store.Record{ID: types.RecordID{Partition: parts[2], Position: -1}, Class: "Animal"})
	require.NoError(t, err)
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassPartitionSelection, "BALANCED"))
	pid, err = c.NewRecordPartition(ctx, "Animal")
	require.NoError(t, err)
	require.Equal(t, parts[1], pid)

	n, err := c.Count(ctx, "Animal", true)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	err = c.AlterClass(ctx, "Animal", schema.ClassPartitionSelection, "random")
	require.ErrorIs(t, err, schema.ErrNotFound)

	added, err := c.AddPartition(ctx, "Animal")
	require.NoError(t, err)
	require.Contains(t, c.Snapshot().Class("Animal").Partitions(), added)
}

func TestAlterClass(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Pet", schema.ClassOptions{}))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassDescription, "  all the animals "))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassStrict, "true"))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassCustom, "owner = zoo"))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassCustom, "color=red"))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassCustom, "color=null"))
	require.NoError(t, c.AlterClass(ctx, "Animal", schema.ClassSuperClasses, "Pet"))

	a := c.Snapshot().Class("Animal")
	require.Equal(t, "all the animals", a.Description())
	require.True(t, a.IsStrict())
	require.Equal(t, []string{"owner"}, a.CustomKeys())
	v, ok := a.Custom("owner")
	require.True(t, ok)
	require.Equal(t, "zoo", v)
	require.Equal(t, "Pet", a.SuperClasses()[0].Name())

	err := c.AlterClass(ctx, "Animal", schema.ClassStrict, "maybe")
	require.ErrorIs(t, err, schema.ErrTypeConflict)
	attr, err := schema.ParseClassAttr(" Description ")
	require.NoError(t, err)
	require.Equal(t, schema.ClassDescription, attr)
}

func TestListeners(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t, noRoots)
	var events []string
	remove := c.AddListener(schema.ListenerFuncs{
		CreateClass: func(_ context.Context, class string) {
			require.True(t, c.ExistsClass(class), "listener runs after the change")
			events = append(events, "+"+class)
		},
		DropClass: func(_ context.Context, class string) {
			events = append(events, "-"+class)
		},
		CreateProperty: func(_ context.Context, class, prop string) {
			events = append(events, "+"+class+"."+prop)
		},
		DropProperty: func(_ context.Context, class, prop string) {
			events = append(events, "-"+class+"."+prop)
		},
	})
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.NoError(t, c.DropProperty(ctx, "Animal", "age"))
	require.Error(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.DropClass(ctx, "Animal"))
	remove()
	require.NoError(t, c.CreateClass(ctx, "Plant", schema.ClassOptions{}))

	require.Equal(t, []string{"+Animal", "+Animal.age", "-Animal.age", "-Animal"}, events)
}

func TestIndexes(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateIndex(ctx, "Animal.name", "Animal", "unique", "name"))

	err := c.CreateIndex(ctx, "animal.NAME", "Animal", store.Unique, "name")
	require.ErrorIs(t, err, schema.ErrNameConflict)
	err = c.CreateIndex(ctx, "Animal.age", "Animal", store.Unique, "age")
	require.ErrorIs(t, err, schema.ErrNotFound)
	err = c.CreateIndex(ctx, "Animal.x", "Animal", "fulltext", "name")
	require.ErrorIs(t, err, schema.ErrNotFound)

	// a fresh subclass joins the index
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	dogParts := c.Snapshot().Class("Dog").Partitions()
	got, err := s.IndexPartitions("Animal.name")
	require.NoError(t, err)
	require.Subset(t, got, dogParts)
	require.Equal(t, []string{"Animal.name"}, indexNames(c.Snapshot().Class("Dog").Indexes()))

	// a class holding duplicates is excluded, the change still succeeds
	require.NoError(t, c.CreateClass(ctx, "Cat", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Cat", "name", types.String, schema.PropertyOptions{}))
	save(t, c, s, "Cat", types.Map{"name": types.Text("Tom")})
	save(t, c, s, "Cat", types.Map{"name": types.Text("Tom")})
	require.NoError(t, c.AddSuperClass(ctx, "Cat", "Animal"))
	catParts := c.Snapshot().Class("Cat").Partitions()
	got, err = s.IndexPartitions("Animal.name")
	require.NoError(t, err)
	require.NotSubset(t, got, catParts)
	require.Equal(t, got, c.Snapshot().Index("animal.name").Partitions)

	// partitions leave the index with the hierarchy
	require.NoError(t, c.RemoveSuperClass(ctx, "Dog", "Animal"))
	got, err = s.IndexPartitions("Animal.name")
	require.NoError(t, err)
	require.NotSubset(t, got, dogParts)

	require.NoError(t, c.DropClass(ctx, "Cat"))
	require.NoError(t, c.DropClass(ctx, "Dog"))
	require.NoError(t, c.DropClass(ctx, "Animal"))
	_, err = s.IndexPartitions("Animal.name")
	require.ErrorIs(t, err, store.ErrIndexNotFound)
	require.Empty(t, c.Snapshot().Indexes())
}

func indexNames(list []*schema.Index) []string {
	var out []string
	for _, idx := range list {
		out = append(out, idx.Name)
	}
	return out
}

func TestAccessDenied(t *testing.T) {
	s := memstore.New()
	gate := &auth.Policy{Rules: []auth.Rule{
		{User: "alice", Resource: auth.Wildcard, Name: auth.Wildcard, Allow: auth.All},
		{User: "bob", Resource: auth.Class, Name: auth.Wildcard, Allow: auth.Read | auth.Update},
	}}
	o := schema.DefaultOptions()
	o.StrictReads = true
	c, err := schema.New(context.TODO(), schema.Deps{Records: s, Gate: gate}, o)
	require.NoError(t, err)

	alice := auth.WithUser(context.TODO(), "alice")
	bob := auth.WithUser(context.TODO(), "bob")
	err = c.CreateClass(bob, "Animal", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrAccessDenied)
	require.False(t, c.ExistsClass("Animal"))

	require.NoError(t, c.CreateClass(alice, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(bob, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	err = c.DropClass(bob, "Animal")
	require.ErrorIs(t, err, schema.ErrAccessDenied)

	_, err = c.Class(bob, "Animal")
	require.NoError(t, err)
	_, err = c.Class(context.TODO(), "Animal")
	require.ErrorIs(t, err, schema.ErrAccessDenied)
}

func TestRejectedInTransaction(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := store.WithTransaction(context.TODO())
	err := c.CreateClass(ctx, "Animal", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrIllegalState)
	require.False(t, c.ExistsClass("Animal"))
}

func TestSnapshotIsStable(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	s1 := c.Snapshot()
	require.Same(t, s1, c.Snapshot())

	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	s2 := c.Snapshot()
	require.NotSame(t, s1, s2)
	require.Nil(t, s1.Class("Animal"))
	require.NotNil(t, s2.Class("Animal"))
	require.Equal(t, []string{"Animal", "E", "V"}, classNames(s2.Classes()))

	// failed changes keep the cached snapshot
	require.Error(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.Same(t, s2, c.Snapshot())
}

func classNames(list []*schema.Class) []string {
	var out []string
	for _, c := range list {
		out = append(out, c.Name())
	}
	return out
}

func TestPersistence(t *testing.T) {
	ctx := context.TODO()
	s := memstore.New()
	deps := schema.Deps{Records: s, Indexes: s, Meta: s}
	c1, err := schema.Open(ctx, deps, schema.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, c1.CreateClass(ctx, "Person", schema.ClassOptions{SuperClasses: []string{"V"}, Partitions: 2}))
	require.NoError(t, c1.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c1.CreateProperty(ctx, "Animal", "owner", types.Link, schema.PropertyOptions{LinkedClass: "Person"}))
	require.NoError(t, c1.CreateProperty(ctx, "Person", "tags", types.EmbeddedList, schema.PropertyOptions{LinkedType: types.String}))
	require.NoError(t, c1.AlterProperty(ctx, "Person", "tags", schema.PropertyMax, "5"))
	require.NoError(t, c1.CreateIndex(ctx, "Person.tags", "Person", store.NotUnique, "tags"))
	require.NoError(t, c1.AlterClass(ctx, "Animal", schema.ClassCustom, "zoo=yes"))

	c2, err := schema.Open(ctx, deps, schema.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, c1.Definition(), c2.Definition())

	p := c2.Snapshot().Class("Person").Property("tags")
	require.Equal(t, types.String, p.LinkedType())
	require.Equal(t, "5", p.Max())
	require.True(t, c2.Snapshot().Class("Person").IsVertexType())

	// both catalogs intern the same way from here on
	require.NoError(t, c2.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.NoError(t, c1.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.Equal(t,
		c1.Snapshot().Class("Animal").Property("age").ID(),
		c2.Snapshot().Class("Animal").Property("age").ID(),
	)

	data, err := c1.Definition().Marshal()
	require.NoError(t, err)
	def, err := schema.UnmarshalDefinition(data)
	require.NoError(t, err)
	c3, err := schema.Load(ctx, def, deps, schema.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, c1.Definition(), c3.Definition())
}

func TestLoadRejectsBrokenDefinitions(t *testing.T) {
	ctx := context.TODO()
	deps := schema.Deps{Records: memstore.New()}
	cases := []struct {
		name string
		def  schema.Definition
		err  error
	}{
		{
			name: "cycle",
			def: schema.Definition{Classes: []schema.ClassDef{
				{Name: "A", SuperClasses: []string{"B"}},
				{Name: "B", SuperClasses: []string{"A"}},
			}},
			err: schema.ErrCyclicInheritance,
		},
		{
			name: "shared partition",
			def: schema.Definition{Classes: []schema.ClassDef{
				{Name: "A", Partitions: []int32{1}},
				{Name: "B", Partitions: []int32{1}},
			}},
			err: schema.ErrIllegalState,
		},
		{
			name: "duplicate class",
			def: schema.Definition{Classes: []schema.ClassDef{
				{Name: "A"}, {Name: "a"},
			}},
			err: schema.ErrNameConflict,
		},
		{
			name: "unknown global",
			def: schema.Definition{Classes: []schema.ClassDef{
				{Name: "A", Properties: []schema.PropertyDef{{Name: "x", Type: types.String, GlobalID: 3}}},
			}},
			err: schema.ErrIllegalState,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := schema.Load(ctx, &c.def, deps, schema.DefaultOptions())
			require.ErrorIs(t, err, c.err)
		})
	}
}

func TestGetOrCreateClass(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	created, err := c.GetOrCreateClass(ctx, "Animal", schema.ClassOptions{Partitions: 2})
	require.NoError(t, err)
	require.True(t, created)
	snap := c.Snapshot()

	created, err = c.GetOrCreateClass(ctx, "animal", schema.ClassOptions{Abstract: true})
	require.NoError(t, err)
	require.False(t, created)
	require.Same(t, snap, c.Snapshot())
	require.False(t, c.Snapshot().Class("Animal").IsAbstract())

	_, err = c.GetOrCreateClass(ctx, "Bad:Name", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrInvalidName)
}

func TestTruncateClass(t *testing.T) {
	ctx := context.TODO()
	c, s := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateIndex(ctx, "Animal.name", "Animal", store.Unique, "name"))
	save(t, c, s, "Animal", types.Map{"name": types.Text("Tom")})
	save(t, c, s, "Dog", types.Map{"name": types.Text("Rex")})

	n, err := c.TruncateClass(ctx, "Animal", false, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	cnt, err := c.Count(ctx, "Animal", true)
	require.NoError(t, err)
	require.EqualValues(t, 1, cnt)

	n, err = c.TruncateClass(ctx, "Animal", true, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	size, err := s.IndexSize("Animal.name")
	require.NoError(t, err)
	require.Zero(t, size)
	// the emptied partitions still belong to the index
	save(t, c, s, "Dog", types.Map{"name": types.Text("Rex")})
	pid, err := c.NewRecordPartition(ctx, "Dog")
	require.NoError(t, err)
	_, err = s.Save(ctx, &store.Record{
		ID:     types.RecordID{Partition: pid, Position: -1},
		Class:  "Dog",
		Fields: types.Map{"name": types.Text("Rex")},
	})
	require.ErrorIs(t, err, store.ErrUniqueViolation)

	// graph records are only removed as unsafe
	require.NoError(t, c.CreateClass(ctx, "Person", schema.ClassOptions{SuperClasses: []string{"V"}}))
	save(t, c, s, "Person", types.Map{})
	_, err = c.TruncateClass(ctx, "Person", false, false)
	require.ErrorIs(t, err, schema.ErrIllegalState)
	n, err = c.TruncateClass(ctx, "Person", false, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = c.TruncateClass(store.WithTransaction(ctx), "Animal", true, false)
	require.ErrorIs(t, err, schema.ErrIllegalState)
	_, err = c.TruncateClass(ctx, "Plant", false, false)
	require.ErrorIs(t, err, schema.ErrNotFound)
}

func TestIndexInvolvement(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Animal"}}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "name", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Animal", "age", types.Integer, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Dog", "breed", types.String, schema.PropertyOptions{}))
	require.NoError(t, c.CreateIndex(ctx, "Animal.name_age", "Animal", store.NotUnique, "name", "age"))
	require.NoError(t, c.CreateIndex(ctx, "Dog.breed", "Dog", store.NotUnique, "breed"))

	snap := c.Snapshot()
	animal, dog := snap.Class("Animal"), snap.Class("Dog")
	require.True(t, animal.AreIndexed("name"))
	require.True(t, animal.AreIndexed("age", "name"))
	require.False(t, animal.AreIndexed("age"))
	require.False(t, animal.AreIndexed("breed"))
	require.True(t, dog.AreIndexed("breed"))
	require.True(t, dog.AreIndexed("NAME"))
	require.Equal(t, []string{"Animal.name_age"}, indexNames(dog.InvolvedIndexes("name")))
	require.Empty(t, animal.InvolvedIndexes())

	var names []string
	for _, p := range dog.IndexedProperties() {
		names = append(names, p.Name())
	}
	require.Equal(t, []string{"age", "breed", "name"}, names)
	require.Len(t, animal.IndexedProperties(), 2)
}

func TestBlobPartitions(t *testing.T) {
	ctx := context.TODO()
	s := memstore.New()
	deps := schema.Deps{Records: s, Indexes: s, Meta: s}
	c, err := schema.Open(ctx, deps, schema.DefaultOptions())
	require.NoError(t, err)

	pid, err := c.AddBlobPartition(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{pid}, c.BlobPartitions())
	snap := c.Snapshot()
	require.True(t, snap.IsBlobPartition(pid))
	require.Nil(t, snap.ClassByPartition(pid))

	// new classes never get a blob partition
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{Partitions: 3}))
	require.NotContains(t, c.Snapshot().Class("Animal").Partitions(), pid)

	c2, err := schema.Open(ctx, deps, schema.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, []int32{pid}, c2.BlobPartitions())

	require.NoError(t, c.RemoveBlobPartition(ctx, pid))
	require.Empty(t, c.BlobPartitions())
	require.False(t, c.Snapshot().IsBlobPartition(pid))
	require.ErrorIs(t, c.RemoveBlobPartition(ctx, pid), schema.ErrNotFound)
	_, err = s.PartitionSize(ctx, pid)
	require.Error(t, err)
}

// Run with -race: snapshots taken while writers change the hierarchy must
// each be internally consistent.
func TestConcurrentSnapshots(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t, noRoots)
	require.NoError(t, c.CreateClass(ctx, "Base", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Other", schema.ClassOptions{}))

	const writers, classes = 4, 10
	stop := make(chan struct{})
	var readers sync.WaitGroup
	errs := make(chan error, 8)
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := checkUnion(c.Snapshot()); err != nil {
					select {
					case errs <- err:
					default:
					}
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < classes; i++ {
				name := fmt.Sprintf("C%d_%d", w, i)
				if err := c.CreateClass(ctx, name, schema.ClassOptions{SuperClasses: []string{"Base"}}); err != nil {
					errs <- err
					return
				}
				if i%2 == 0 {
					if err := c.AddSuperClass(ctx, name, "Other"); err != nil {
						errs <- err
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	readers.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final := c.Snapshot()
	require.NoError(t, checkUnion(final))
	require.Len(t, final.Class("Base").AllSubClasses(), writers*classes)
	require.Len(t, final.Class("Other").AllSubClasses(), writers*classes/2)
	require.Len(t, final.Class("Base").PolymorphicPartitions(), writers*classes+1)
}

// checkUnion verifies that every polymorphic partition set is the union of
// the own partitions of the class and of its subclasses.
func checkUnion(snap *schema.Snapshot) error {
	for _, cl := range snap.Classes() {
		want := make(map[int32]bool)
		for _, pid := range cl.Partitions() {
			want[pid] = true
		}
		for _, sub := range cl.AllSubClasses() {
			for _, pid := range sub.Partitions() {
				want[pid] = true
			}
		}
		got := cl.PolymorphicPartitions()
		if len(got) != len(want) {
			return fmt.Errorf("class %s: polymorphic partitions %v, want %d ids", cl.Name(), got, len(want))
		}
		for _, pid := range got {
			if !want[pid] {
				return fmt.Errorf("class %s: unexpected partition %d", cl.Name(), pid)
			}
		}
	}
	return nil
}

func TestGetOrCreateClassChecksGate(t *testing.T) {
	s := memstore.New()
	gate := &auth.Policy{Rules: []auth.Rule{
		{User: "alice", Resource: auth.Wildcard, Name: auth.Wildcard, Allow: auth.All},
		{User: "bob", Resource: auth.Wildcard, Name: auth.Wildcard, Allow: auth.Read},
	}}
	c, err := schema.New(context.TODO(), schema.Deps{Records: s, Gate: gate}, schema.DefaultOptions())
	require.NoError(t, err)
	alice := auth.WithUser(context.TODO(), "alice")
	bob := auth.WithUser(context.TODO(), "bob")
	require.NoError(t, c.CreateClass(alice, "Animal", schema.ClassOptions{}))

	// an existing class is not revealed to a caller that may not create it
	_, err = c.GetOrCreateClass(bob, "Animal", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrAccessDenied)
	_, err = c.GetOrCreateClass(bob, "Plant", schema.ClassOptions{})
	require.ErrorIs(t, err, schema.ErrAccessDenied)
	require.False(t, c.ExistsClass("Plant"))

	created, err := c.GetOrCreateClass(alice, "Animal", schema.ClassOptions{})
	require.NoError(t, err)
	require.False(t, created)
}

// alteringStore changes the schema while a record is being deleted.
type alteringStore struct {
	*memstore.Store
	c       *schema.Catalog
	deletes int
}

func (s *alteringStore) Delete(ctx context.Context, id types.RecordID) error {
	s.deletes++
	if s.deletes == 1 {
		if err := s.c.AlterClass(ctx, "Animal", schema.ClassDescription, "truncated"); err != nil {
			return err
		}
	}
	return s.Store.Delete(ctx, id)
}

func TestTruncateClassReleasesLock(t *testing.T) {
	ctx := context.TODO()
	mem := memstore.New()
	rs := &alteringStore{Store: mem}
	o := schema.DefaultOptions()
	o.GraphRoots = false
	c, err := schema.New(ctx, schema.Deps{Records: rs, Indexes: mem, Meta: mem}, o)
	require.NoError(t, err)
	rs.c = c
	require.NoError(t, c.CreateClass(ctx, "Animal", schema.ClassOptions{}))
	const records = 1005 // more than one deletion batch
	for i := 0; i < records; i++ {
		save(t, c, mem, "Animal", types.Map{"n": types.Int64(i)})
	}

	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.TruncateClass(ctx, "Animal", false, false)
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.EqualValues(t, records, r.n)
	case <-time.After(10 * time.Second):
		t.Fatal("truncate blocked a schema change")
	}
	require.Equal(t, "truncated", c.Snapshot().Class("Animal").Description())
	cnt, err := c.Count(ctx, "Animal", false)
	require.NoError(t, err)
	require.Zero(t, cnt)
}
