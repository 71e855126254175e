package kv_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/kv"
	"github.com/cayleygraph/catalog/store/kv/btree"
	"github.com/cayleygraph/catalog/store/storetest"
	"github.com/cayleygraph/catalog/types"
)

func TestInit(t *testing.T) {
	db := btree.New()
	defer db.Close()

	_, err := kv.New(db, nil)
	require.True(t, errors.Is(err, store.ErrNotInitialized), "%v", err)
	require.NoError(t, kv.Init(db, nil))
	require.True(t, errors.Is(kv.Init(db, nil), store.ErrDatabaseExists))
}

func TestReopen(t *testing.T) {
	ctx := context.TODO()
	db := btree.New()
	defer db.Close()
	require.NoError(t, kv.Init(db, nil))

	s, err := kv.New(db, store.Options{kv.OptCompress: true})
	require.NoError(t, err)
	p1, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	p2, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	ids := storetest.Fill(t, s, p1, "A", 5)
	require.NoError(t, s.DropPartition(ctx, p2))
	def := store.IndexDefinition{Name: "A.n", Class: "A", Type: store.Unique, Fields: []string{"n"}}
	require.NoError(t, s.CreateIndex(ctx, def, []int32{p1}))
	require.NoError(t, s.PutMeta(ctx, "schema", []byte("{}")))

	// plain records are still readable after compression is turned off
	s2, err := kv.New(db, nil)
	require.NoError(t, err)

	n, err := s2.PartitionSize(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	_, err = s2.PartitionSize(ctx, p2)
	require.True(t, errors.Is(err, store.ErrPartitionNotFound))

	rec, err := s2.Load(ctx, ids[3])
	require.NoError(t, err)
	require.Equal(t, types.Int64(3), rec.Fields["n"])

	_, err = s2.Save(ctx, &store.Record{
		ID:     types.RecordID{Partition: p1, Position: -1},
		Class:  "A",
		Fields: types.Map{"n": types.Int64(3)},
	})
	require.True(t, errors.Is(err, store.ErrUniqueViolation), "%v", err)

	p3, err := s2.AllocatePartition(ctx)
	require.NoError(t, err)
	require.Greater(t, p3, p2)

	data, err := s2.GetMeta(ctx, "schema")
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
}

func TestScanWhileWriting(t *testing.T) {
	ctx := context.TODO()
	db := btree.New()
	defer db.Close()
	require.NoError(t, kv.Init(db, nil))
	s, err := kv.New(db, nil)
	require.NoError(t, err)

	pid, err := s.AllocatePartition(ctx)
	require.NoError(t, err)
	storetest.Fill(t, s, pid, "A", 600)

	n := 0
	err = store.Each(ctx, s, pid, func(r *store.Record) error {
		n++
		r.Fields["n"] = types.Text("x")
		_, err := s.Save(ctx, r)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 600, n)
}
