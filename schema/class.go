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

package schema

import (
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// ClassAttr is an attribute of a class that can be altered.
type ClassAttr int

const (
	ClassName ClassAttr = iota
	ClassDescription
	ClassAbstract
	ClassStrict
	ClassSuperClasses
	ClassCustom
	ClassPartitionSelection
)

var classAttrNames = [...]string{
	ClassName:               "name",
	ClassDescription:        "description",
	ClassAbstract:           "abstract",
	ClassStrict:             "strict",
	ClassSuperClasses:       "superclasses",
	ClassCustom:             "custom",
	ClassPartitionSelection: "partitionselection",
}

func (a ClassAttr) String() string {
	if a < 0 || int(a) >= len(classAttrNames) {
		return "ClassAttr(" + strconv.Itoa(int(a)) + ")"
	}
	return classAttrNames[a]
}

// ParseClassAttr returns the attribute with a given name, ignoring case.
func ParseClassAttr(s string) (ClassAttr, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range classAttrNames {
		if n == s {
			return ClassAttr(i), nil
		}
	}
	return 0, markf(ErrNotFound, "unknown class attribute %q", s)
}

// Names of the graph root classes.
const (
	VertexClass = "V"
	EdgeClass   = "E"
)

// class is the live, lock-guarded version of a class.
type class struct {
	name        string
	description string
	abstract    bool
	strict      bool

	parts []int32 // own partitions, sorted
	poly  []int32 // own and transitive subclass partitions, sorted

	supers []*class
	subs   []*class

	props  map[string]*property
	custom map[string]string

	selection string
	next      atomic.Uint32
}

func newClass(name string) *class {
	return &class{
		name:      name,
		props:     make(map[string]*property),
		selection: SelectRoundRobin,
	}
}

func lower(name string) string { return strings.ToLower(name) }

// checkClassName rejects names with characters used as separators by the
// query layer.
func checkClassName(name string) error {
	if strings.TrimSpace(name) == "" {
		return markf(ErrInvalidName, "class name is empty")
	}
	if strings.ContainsAny(name, ":,; %@=.`") || strings.IndexFunc(name, isSpace) >= 0 {
		return markf(ErrInvalidName, "class name %q contains a reserved character", name)
	}
	if name[0] >= '0' && name[0] <= '9' {
		return markf(ErrInvalidName, "class name %q starts with a digit", name)
	}
	return nil
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

// isSubClassOf reports if o is c or one of its ancestors.
func (c *class) isSubClassOf(o *class) bool {
	if c == o {
		return true
	}
	for _, s := range c.supers {
		if s.isSubClassOf(o) {
			return true
		}
	}
	return false
}

// ancestors returns the transitive superclasses, nearest first.
func (c *class) ancestors() []*class {
	var out []*class
	seen := map[*class]bool{c: true}
	queue := append([]*class(nil), c.supers...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		queue = append(queue, s.supers...)
	}
	return out
}

// descendants returns the transitive subclasses, nearest first.
func (c *class) descendants() []*class {
	var out []*class
	seen := map[*class]bool{c: true}
	queue := append([]*class(nil), c.subs...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		queue = append(queue, s.subs...)
	}
	return out
}

// property finds a declared or inherited property.
func (c *class) property(name string) *property {
	if p, ok := c.props[name]; ok {
		return p
	}
	for _, s := range c.supers {
		if p := s.property(name); p != nil {
			return p
		}
	}
	return nil
}

// allProperties returns declared and inherited properties by name.
// Declarations of nearer classes win.
func (c *class) allProperties() map[string]*property {
	out := make(map[string]*property)
	c.collectProperties(out)
	return out
}

func (c *class) collectProperties(out map[string]*property) {
	for n, p := range c.props {
		if _, ok := out[n]; !ok {
			out[n] = p
		}
	}
	for _, s := range c.supers {
		s.collectProperties(out)
	}
}

func (c *class) hasPartition(pid int32) bool {
	i := sort.Search(len(c.parts), func(i int) bool { return c.parts[i] >= pid })
	return i < len(c.parts) && c.parts[i] == pid
}

func (c *class) isVertexType() bool { return c.hasAncestorNamed(VertexClass) }
func (c *class) isEdgeType() bool   { return c.hasAncestorNamed(EdgeClass) }

func (c *class) hasAncestorNamed(name string) bool {
	if strings.EqualFold(c.name, name) {
		return true
	}
	for _, s := range c.supers {
		if s.hasAncestorNamed(name) {
			return true
		}
	}
	return false
}

func removeClass(list []*class, c *class) []*class {
	out := list[:0]
	for _, x := range list {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

func containsClass(list []*class, c *class) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func link(sub, super *class) {
	sub.supers = append(sub.supers, super)
	super.subs = append(super.subs, sub)
}

func unlink(sub, super *class) {
	sub.supers = removeClass(sub.supers, super)
	super.subs = removeClass(super.subs, sub)
}

// refreshPolymorphic recomputes the polymorphic partitions of the given
// classes and of all their ancestors, subclasses before superclasses.
func refreshPolymorphic(from ...*class) {
	set := make(map[*class]bool)
	for _, c := range from {
		set[c] = true
		for _, a := range c.ancestors() {
			set[a] = true
		}
	}
	// number of pending subclasses inside the set
	pending := make(map[*class]int, len(set))
	for c := range set {
		for _, s := range c.subs {
			if set[s] {
				pending[c]++
			}
		}
	}
	var ready []*class
	for c := range set {
		if pending[c] == 0 {
			ready = append(ready, c)
		}
	}
	for len(ready) > 0 {
		c := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		c.poly = unionPartitions(c)
		for _, s := range c.supers {
			if !set[s] {
				continue
			}
			pending[s]--
			if pending[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
}

func unionPartitions(c *class) []int32 {
	seen := make(map[int32]bool, len(c.parts))
	var out []int32
	add := func(ids []int32) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(c.parts)
	for _, s := range c.subs {
		add(s.poly)
	}
	sortPartitions(out)
	return out
}

func sortPartitions(ids []int32) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func addPartition(ids []int32, pid int32) []int32 {
	ids = append(ids, pid)
	sortPartitions(ids)
	return ids
}

func clonePartitions(ids []int32) []int32 {
	if len(ids) == 0 {
		return nil
	}
	return append([]int32(nil), ids...)
}

func partitionSet(ids []int32) map[int32]bool {
	m := make(map[int32]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// typeConflicts returns the first property name declared with different
// types by the two maps.
func typeConflicts(a, b map[string]*property) (string, bool) {
	names := make([]string, 0, len(a))
	for n := range a {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if q, ok := b[n]; ok && q.tag() != a[n].tag() {
			return n, true
		}
	}
	return "", false
}
