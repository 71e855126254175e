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

// Package btree is a volatile in-memory KV backend.
package btree

import (
	hkv "github.com/hidal-go/hidalgo/kv"
	"github.com/hidal-go/hidalgo/kv/flat"
	"github.com/hidal-go/hidalgo/kv/flat/btree"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/store/kv"
)

const (
	Type = btree.Name
)

func init() {
	if store.IsRegistered(Type) {
		return
	}
	kv.Register(Type, kv.Registration{
		OpenFunc:     Create,
		IsPersistent: false,
	})
}

func Create(path string, _ store.Options) (hkv.KV, error) {
	return New(), nil
}

func New() hkv.KV {
	return flat.Upgrade(btree.New())
}
