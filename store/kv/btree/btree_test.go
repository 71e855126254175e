// Copyright 2024 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package btree

import (
	"context"
	"testing"

	hkv "github.com/hidal-go/hidalgo/kv"
	"github.com/hidal-go/hidalgo/kv/kvdebug"
	"github.com/stretchr/testify/require"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/kv"
	"github.com/cayleygraph/catalog/store/storetest"
)

const debug = false

func makeBtree(opts store.Options) storetest.DatabaseFunc {
	return func(t testing.TB) (store.Backend, func()) {
		var db hkv.KV = New()
		closer := func() {}
		if debug {
			d := kvdebug.New(db)
			d.Log(true)
			db = d
			closer = func() {
				t.Logf("kv stats: %+v", d.Stats())
			}
		}
		require.NoError(t, kv.Init(db, opts))
		s, err := kv.New(db, opts)
		require.NoError(t, err)
		return s, func() {
			closer()
			s.Close()
		}
	}
}

func TestBtree(t *testing.T) {
	storetest.TestAll(t, makeBtree(nil))
}

func TestBtreeNoBloom(t *testing.T) {
	storetest.TestAll(t, makeBtree(store.Options{kv.OptBloom: false, kv.OptCacheSize: 0}))
}

func TestBtreeCompressed(t *testing.T) {
	storetest.TestAll(t, makeBtree(store.Options{kv.OptCompress: true, kv.OptBloomSize: 1000}))
}

func TestRegistered(t *testing.T) {
	require.True(t, store.IsRegistered(Type))
	require.False(t, store.IsPersistent(Type))
	s, err := store.Open(Type, "", nil)
	require.NoError(t, err)
	defer s.Close()
	storetest.Fill(t, s, mustAllocate(t, s), "A", 3)
}

func mustAllocate(t testing.TB, s store.Backend) int32 {
	pid, err := s.AllocatePartition(context.TODO())
	require.NoError(t, err)
	return pid
}
