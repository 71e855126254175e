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

// Package auth contains the authorization gate consulted by the catalog
// before it reads or changes the schema.
package auth

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrAccessDenied = errors.New("access denied")

// Resource is the kind of object a permission is checked on.
type Resource string

const (
	Schema Resource = "schema"
	Class  Resource = "class"
	Index  Resource = "index"
)

type Permission int

const (
	Read Permission = 1 << iota
	Create
	Update
	Delete

	All = Read | Create | Update | Delete
)

func (p Permission) String() string {
	var names []string
	for _, n := range []struct {
		p    Permission
		name string
	}{{Read, "read"}, {Create, "create"}, {Update, "update"}, {Delete, "delete"}} {
		if p&n.p != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Gate decides if the user on the context may perform an operation.
type Gate interface {
	Check(ctx context.Context, res Resource, perm Permission, name string) error
}

// AllowAll is a Gate that never denies.
type AllowAll struct{}

func (AllowAll) Check(context.Context, Resource, Permission, string) error { return nil }

type userKey struct{}

// WithUser returns a context carrying the name of the acting user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// User returns the user set by WithUser, or an empty string.
func User(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}
