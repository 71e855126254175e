package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/types"
)

func TestValidate(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Person", schema.ClassOptions{SuperClasses: []string{"V"}}))
	require.NoError(t, c.CreateClass(ctx, "Pet", schema.ClassOptions{}))
	require.NoError(t, c.CreateClass(ctx, "Dog", schema.ClassOptions{SuperClasses: []string{"Pet"}}))
	require.NoError(t, c.CreateClass(ctx, "Car", schema.ClassOptions{}))
	for _, p := range []struct {
		name string
		tag  types.Tag
		opts schema.PropertyOptions
	}{
		{"name", types.String, schema.PropertyOptions{}},
		{"age", types.Integer, schema.PropertyOptions{}},
		{"ssn", types.Long, schema.PropertyOptions{}},
		{"nick", types.EmbeddedList, schema.PropertyOptions{LinkedType: types.String}},
		{"pets", types.LinkList, schema.PropertyOptions{LinkedClass: "Pet"}},
		{"note", types.String, schema.PropertyOptions{}},
	} {
		require.NoError(t, c.CreateProperty(ctx, "Person", p.name, p.tag, p.opts), p.name)
	}
	for _, a := range []struct {
		prop  string
		attr  schema.PropertyAttr
		value string
	}{
		{"name", schema.PropertyMandatory, "true"},
		{"name", schema.PropertyRegexp, "[A-Z][a-z]+"},
		{"name", schema.PropertyMin, "2"},
		{"name", schema.PropertyMax, "10"},
		{"age", schema.PropertyMin, "0"},
		{"age", schema.PropertyMax, "150"},
		{"ssn", schema.PropertyReadOnly, "true"},
		{"nick", schema.PropertyMax, "2"},
		{"note", schema.PropertyNotNull, "true"},
	} {
		require.NoError(t, c.AlterProperty(ctx, "Person", a.prop, a.attr, a.value), "%s %v", a.prop, a.attr)
	}
	require.NoError(t, c.AlterClass(ctx, "Person", schema.ClassStrict, "true"))

	snap := c.Snapshot()
	pet := snap.Class("Dog").Partitions()[0]
	car := snap.Class("Car").Partitions()[0]
	valid := func() types.Map {
		return types.Map{
			"name": types.Text("Alice"),
			"age":  types.Int32(30),
			"ssn":  types.Int64(1),
			"nick": types.List{types.Text("Al")},
			"pets": types.RefList{types.RecordID{Partition: pet, Position: 0}},
		}
	}
	require.NoError(t, snap.Validate("Person", valid(), nil))

	cases := []struct {
		name string
		edit func(m types.Map)
	}{
		{"missing mandatory", func(m types.Map) { delete(m, "name") }},
		{"undeclared on strict", func(m types.Map) { m["extra"] = types.Bool(true) }},
		{"regexp", func(m types.Map) { m["name"] = types.Text("alice") }},
		{"too short", func(m types.Map) { m["name"] = types.Text("A") }},
		{"too long", func(m types.Map) { m["name"] = types.Text("Bartholomewson") }},
		{"over max", func(m types.Map) { m["age"] = types.Int32(151) }},
		{"under min", func(m types.Map) { m["age"] = types.Int32(-1) }},
		{"wrong type", func(m types.Map) { m["age"] = types.Text("30") }},
		{"wrong item type", func(m types.Map) { m["nick"] = types.List{types.Int32(1)} }},
		{"too many items", func(m types.Map) {
			m["nick"] = types.List{types.Text("a"), types.Text("b"), types.Text("c")}
		}},
		{"wrong linked class", func(m types.Map) {
			m["pets"] = types.RefList{types.RecordID{Partition: car, Position: 0}}
		}},
		{"null not allowed", func(m types.Map) { m["note"] = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.edit(m)
			require.ErrorIs(t, snap.Validate("Person", m, nil), schema.ErrValidation)
		})
	}

	prev := valid()
	next := valid()
	next["ssn"] = types.Int64(2)
	require.ErrorIs(t, snap.Validate("Person", next, prev), schema.ErrValidation)
	require.NoError(t, snap.Validate("Person", next, nil))
	require.NoError(t, snap.Validate("Person", valid(), prev))

	require.ErrorIs(t, snap.Validate("Nope", valid(), nil), schema.ErrNotFound)
}

func TestAlterPropertyChecks(t *testing.T) {
	ctx := context.TODO()
	c, _ := newCatalog(t)
	require.NoError(t, c.CreateClass(ctx, "Event", schema.ClassOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Event", "at", types.DateTime, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Event", "flag", types.Boolean, schema.PropertyOptions{}))
	require.NoError(t, c.CreateProperty(ctx, "Event", "count", types.Integer, schema.PropertyOptions{}))

	require.NoError(t, c.AlterProperty(ctx, "Event", "at", schema.PropertyMin, "2020-01-01 00:00:00"))
	err := c.AlterProperty(ctx, "Event", "at", schema.PropertyMax, "2019-01-01 00:00:00")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.AlterProperty(ctx, "Event", "flag", schema.PropertyMin, "1")
	require.ErrorIs(t, err, schema.ErrTypeConflict)
	err = c.AlterProperty(ctx, "Event", "count", schema.PropertyDefault, "many")
	require.ErrorIs(t, err, schema.ErrConversion)
	err = c.AlterProperty(ctx, "Event", "count", schema.PropertyRegexp, "(")
	require.ErrorIs(t, err, schema.ErrIllegalState)
	err = c.AlterProperty(ctx, "Event", "count", schema.PropertyCollate, "fancy")
	require.ErrorIs(t, err, schema.ErrNotFound)
	err = c.AlterProperty(ctx, "Event", "count", schema.PropertyLinkedClass, "Event")
	require.ErrorIs(t, err, schema.ErrTypeConflict)

	require.NoError(t, c.AlterProperty(ctx, "Event", "count", schema.PropertyDefault, "3"))
	require.NoError(t, c.AlterProperty(ctx, "Event", "count", schema.PropertyCollate, "CI"))
	require.NoError(t, c.AlterProperty(ctx, "Event", "count", schema.PropertyDescription, " how many "))
	require.NoError(t, c.AlterProperty(ctx, "Event", "count", schema.PropertyCustom, "unit=pcs"))
	require.NoError(t, c.AlterProperty(ctx, "Event", "count", schema.PropertyType, "long"))

	p := c.Snapshot().Class("Event").Property("count")
	require.Equal(t, types.Long, p.Type())
	require.Equal(t, "3", p.Default())
	require.Equal(t, types.Int64(3), p.DefaultValue())
	require.Equal(t, schema.CollateCI, p.Collate())
	require.Equal(t, "how many", p.Description())
	require.Equal(t, []string{"unit"}, p.CustomKeys())
	require.Equal(t, "Event.count", p.FullName())
	require.Equal(t, "", c.Snapshot().Class("Event").Property("at").Max())
}
