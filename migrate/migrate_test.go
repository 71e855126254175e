package migrate_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/migrate"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/memstore"
	"github.com/cayleygraph/catalog/types"
)

type parts map[string][]int32

func (p parts) PolymorphicPartitions(class string) ([]int32, error) {
	ids, ok := p[class]
	if !ok {
		return nil, errors.Newf("class %q not found", class)
	}
	return ids, nil
}

func fill(t *testing.T, s store.RecordStore, n int) []int32 {
	ctx := context.TODO()
	var pids []int32
	for i := 0; i < 3; i++ {
		pid, err := s.AllocatePartition(ctx)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	for i := 0; i < n; i++ {
		var v types.Value = types.Int32(i)
		if i%10 == 0 {
			v = types.Text("bad")
		}
		_, err := s.Save(ctx, &store.Record{
			ID:     types.RecordID{Partition: pids[i%len(pids)], Position: -1},
			Class:  "Animal",
			Fields: types.Map{"age": v},
		})
		require.NoError(t, err)
	}
	return pids
}

func toLong(r *store.Record) error {
	v, err := types.DefaultConverter.Convert(r.Fields["age"], types.Long, types.Invalid, "")
	if err != nil {
		return err
	}
	r.Fields["age"] = v
	return nil
}

func notLong(r *store.Record) bool {
	v := r.Fields["age"]
	return v != nil && !types.Long.IsTypeInstance(v)
}

func TestRun(t *testing.T) {
	ctx := context.TODO()
	s := memstore.New()
	pids := fill(t, s, 100)

	r := &migrate.Runner{Store: s, Partitions: parts{"Animal": pids}, BatchSize: 7, Parallelism: 2}
	st, err := r.Run(ctx, "Animal", notLong, func(rec *store.Record) error {
		if rec.Fields["age"] == types.Text("bad") {
			return errors.New("not a number")
		}
		return toLong(rec)
	})
	require.NoError(t, err)
	require.Equal(t, migrate.Stats{Scanned: 100, Rewritten: 90, Failed: 10}, st)

	for _, pid := range pids {
		err := store.Each(ctx, s, pid, func(rec *store.Record) error {
			switch v := rec.Fields["age"].(type) {
			case types.Int64, types.Text:
			default:
				t.Errorf("unexpected value %v of kind %v", v, v.Kind())
			}
			return nil
		})
		require.NoError(t, err)
	}

	// only the failed records still match
	st, err = r.Run(ctx, "Animal", notLong, toLong)
	require.NoError(t, err)
	require.Equal(t, int64(100), st.Scanned)
	require.Equal(t, int64(0), st.Rewritten)
	require.Equal(t, int64(10), st.Failed)
}

func TestRewriteMatchingIgnoresFailures(t *testing.T) {
	s := memstore.New()
	pids := fill(t, s, 20)
	r := &migrate.Runner{Store: s, Partitions: parts{"Animal": pids}}
	err := r.RewriteMatching(context.TODO(), "Animal", notLong, toLong)
	require.NoError(t, err)
}

func TestRunDroppedPartition(t *testing.T) {
	ctx := context.TODO()
	s := memstore.New()
	pids := fill(t, s, 9)
	require.NoError(t, s.DropPartition(ctx, pids[0]))

	r := &migrate.Runner{Store: s, Partitions: parts{"Animal": pids}}
	st, err := r.Run(ctx, "Animal", func(*store.Record) bool { return true }, func(*store.Record) error { return nil })
	require.NoError(t, err)
	require.Equal(t, int64(6), st.Scanned)
}

func TestRunUnknownClass(t *testing.T) {
	r := &migrate.Runner{Store: memstore.New(), Partitions: parts{}}
	_, err := r.Run(context.TODO(), "Nope", func(*store.Record) bool { return true }, func(*store.Record) error { return nil })
	require.Error(t, err)
}

func TestRunCanceled(t *testing.T) {
	s := memstore.New()
	pids := fill(t, s, 30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &migrate.Runner{Store: s, Partitions: parts{"Animal": pids}}
	_, err := r.Run(ctx, "Animal", func(*store.Record) bool { return true }, func(*store.Record) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
