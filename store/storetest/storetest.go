// Package storetest is a conformance suite for storage backends.
package storetest

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

type DatabaseFunc func(t testing.TB) (store.Backend, func())

func TestAll(t *testing.T, gen DatabaseFunc) {
	for _, c := range []struct {
		name string
		fnc  func(t testing.TB, gen DatabaseFunc)
	}{
		{"partitions", TestPartitions},
		{"save load", TestSaveLoad},
		{"scan", TestScan},
		{"delete", TestDelete},
		{"drop partition", TestDropPartition},
		{"unique index", TestUniqueIndex},
		{"index partitions", TestIndexPartitions},
		{"meta", TestMeta},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			c.fnc(t, gen)
		})
	}
}

func newRecord(pid int32, class string, fields types.Map) *store.Record {
	return &store.Record{
		ID:     types.RecordID{Partition: pid, Position: -1},
		Class:  class,
		Fields: fields,
	}
}

// Fill saves n records with a "n" field counting from zero and returns their ids.
func Fill(t testing.TB, rs store.RecordStore, pid int32, class string, n int) []types.RecordID {
	ctx := context.TODO()
	ids := make([]types.RecordID, 0, n)
	for i := 0; i < n; i++ {
		id, err := rs.Save(ctx, newRecord(pid, class, types.Map{"n": types.Int64(i)}))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestPartitions(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	seen := make(map[int32]bool)
	for i := 0; i < 5; i++ {
		pid, err := s.AllocatePartition(ctx)
		require.NoError(t, err)
		require.False(t, seen[pid], "partition %d allocated twice", pid)
		seen[pid] = true
		n, err := s.PartitionSize(ctx, pid)
		require.NoError(t, err)
		require.Equal(t, int64(0), n)
	}
	_, err := s.PartitionSize(ctx, 1000)
	require.True(t, errors.Is(err, store.ErrPartitionNotFound), "%v", err)
}

func TestSaveLoad(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	pid, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	dec, err := types.NewDecimal("10.25")
	require.NoError(t, err)
	fields := types.Map{
		"name":  types.Text("Rex"),
		"age":   types.Int32(7),
		"price": dec,
		"born":  types.Millis(1700000000000),
		"tags":  types.Set{types.Text("a")},
		"addr":  types.NewEntity("Address", map[string]types.Value{"city": types.Text("Rome")}),
		"owner": types.RecordID{Partition: pid, Position: 40},
	}
	id, err := s.Save(ctx, newRecord(pid, "Dog", fields))
	require.NoError(t, err)
	require.Equal(t, pid, id.Partition)
	require.True(t, id.IsPersistent())

	rec, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dog", rec.Class)
	require.Equal(t, id, rec.ID)
	require.True(t, types.Equal(fields, rec.Fields))

	// loaded records are copies
	rec.Fields["name"] = types.Text("Max")
	rec2, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.Text("Rex"), rec2.Fields["name"])

	rec.ID = id
	_, err = s.Save(ctx, rec)
	require.NoError(t, err)
	rec2, err = s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.Text("Max"), rec2.Fields["name"])
	n, err := s.PartitionSize(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.Load(ctx, types.RecordID{Partition: pid, Position: 99})
	require.True(t, errors.Is(err, store.ErrNotFound), "%v", err)

	_, err = s.Save(ctx, newRecord(pid+100, "Dog", nil))
	require.True(t, errors.Is(err, store.ErrPartitionNotFound), "%v", err)
}

func TestScan(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	p1, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	p2, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	ids := Fill(t, s, p1, "A", 20)
	Fill(t, s, p2, "B", 3)

	var got []types.RecordID
	err = store.Each(ctx, s, p1, func(r *store.Record) error {
		require.Equal(t, "A", r.Class)
		got = append(got, r.ID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, ids, got)

	n, err := s.PartitionSize(ctx, p2)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	it := s.ScanPartition(ctx, 1000)
	require.False(t, it.Next(ctx))
	require.True(t, errors.Is(it.Err(), store.ErrPartitionNotFound))
	require.NoError(t, it.Close())
}

func TestDelete(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	pid, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	ids := Fill(t, s, pid, "A", 3)
	require.NoError(t, s.Delete(ctx, ids[1]))
	_, err = s.Load(ctx, ids[1])
	require.True(t, errors.Is(err, store.ErrNotFound))
	err = s.Delete(ctx, ids[1])
	require.True(t, errors.Is(err, store.ErrNotFound))
	n, err := s.PartitionSize(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// positions are not reused
	id, err := s.Save(ctx, newRecord(pid, "A", nil))
	require.NoError(t, err)
	require.Equal(t, ids[2].Position+1, id.Position)
}

func TestDropPartition(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	pid, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	ids := Fill(t, s, pid, "A", 2)
	require.NoError(t, s.DropPartition(ctx, pid))
	_, err = s.Load(ctx, ids[0])
	require.Error(t, err)
	_, err = s.PartitionSize(ctx, pid)
	require.True(t, errors.Is(err, store.ErrPartitionNotFound))
	require.True(t, errors.Is(s.DropPartition(ctx, pid), store.ErrPartitionNotFound))

	next, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	require.NotEqual(t, pid, next)
}

func TestUniqueIndex(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	p1, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	p2, err := s.AllocatePartition(ctx)
	require.NoError(t, err)

	def := store.IndexDefinition{Name: "Person.email", Class: "Person", Type: store.Unique, Fields: []string{"email"}}
	require.NoError(t, s.CreateIndex(ctx, def, []int32{p1, p2}))
	err = s.CreateIndex(ctx, def, nil)
	require.True(t, errors.Is(err, store.ErrIndexExists), "%v", err)

	a, err := s.Save(ctx, newRecord(p1, "Person", types.Map{"email": types.Text("a@x")}))
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p2, "Person", types.Map{"email": types.Text("a@x")}))
	require.True(t, errors.Is(err, store.ErrUniqueViolation), "%v", err)

	// nulls are not indexed
	_, err = s.Save(ctx, newRecord(p1, "Person", types.Map{}))
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p2, "Person", types.Map{}))
	require.NoError(t, err)

	// updating the owner of a key keeps it
	_, err = s.Save(ctx, &store.Record{ID: a, Class: "Person", Fields: types.Map{"email": types.Text("a@x"), "n": types.Int32(1)}})
	require.NoError(t, err)

	// a changed key frees the old one
	_, err = s.Save(ctx, &store.Record{ID: a, Class: "Person", Fields: types.Map{"email": types.Text("b@x")}})
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p2, "Person", types.Map{"email": types.Text("a@x")}))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a))
	_, err = s.Save(ctx, newRecord(p2, "Person", types.Map{"email": types.Text("b@x")}))
	require.NoError(t, err)

	require.NoError(t, s.DropIndex(ctx, def.Name))
	require.True(t, errors.Is(s.DropIndex(ctx, def.Name), store.ErrIndexNotFound))
	_, err = s.Save(ctx, newRecord(p2, "Person", types.Map{"email": types.Text("b@x")}))
	require.NoError(t, err)
}

func TestIndexPartitions(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	p1, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	p2, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p1, "A", types.Map{"k": types.Int32(1)}))
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p2, "A", types.Map{"k": types.Int32(1)}))
	require.NoError(t, err)

	def := store.IndexDefinition{Name: "A.k", Class: "A", Type: store.Unique, Fields: []string{"k"}}
	require.NoError(t, s.CreateIndex(ctx, def, []int32{p1}))

	err = s.AddPartitionToIndex(ctx, def.Name, p2, true)
	require.True(t, errors.Is(err, store.ErrPartitionNotEmpty), "%v", err)
	err = s.AddPartitionToIndex(ctx, def.Name, p2, false)
	require.True(t, errors.Is(err, store.ErrUniqueViolation), "%v", err)

	// a failed registration leaves the partition outside of the index
	_, err = s.Save(ctx, newRecord(p2, "A", types.Map{"k": types.Int32(1)}))
	require.NoError(t, err)

	require.NoError(t, s.RemovePartitionFromIndex(ctx, def.Name, p1))
	_, err = s.Save(ctx, newRecord(p1, "A", types.Map{"k": types.Int32(1)}))
	require.NoError(t, err)

	p3, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddPartitionToIndex(ctx, def.Name, p3, true))
	_, err = s.Save(ctx, newRecord(p3, "A", types.Map{"k": types.Int32(1)}))
	require.NoError(t, err)
	_, err = s.Save(ctx, newRecord(p3, "A", types.Map{"k": types.Int32(1)}))
	require.True(t, errors.Is(err, store.ErrUniqueViolation), "%v", err)

	err = s.AddPartitionToIndex(ctx, "missing", p3, true)
	require.True(t, errors.Is(err, store.ErrIndexNotFound))
}

func TestMeta(t testing.TB, gen DatabaseFunc) {
	s, closer := gen(t)
	defer closer()
	ctx := context.TODO()

	_, err := s.GetMeta(ctx, "schema")
	require.True(t, errors.Is(err, store.ErrNotFound), "%v", err)
	require.NoError(t, s.PutMeta(ctx, "schema", []byte(`{"v":1}`)))
	data, err := s.GetMeta(ctx, "schema")
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(data))
	require.NoError(t, s.PutMeta(ctx, "schema", []byte(`{"v":2}`)))
	data, err = s.GetMeta(ctx, "schema")
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(data))
}
