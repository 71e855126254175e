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
	"regexp"
	"strconv"
	"strings"

	"github.com/cayleygraph/catalog/types"
)

// PropertyAttr is an attribute of a property that can be altered.
type PropertyAttr int

const (
	PropertyName PropertyAttr = iota
	PropertyType
	PropertyLinkedType
	PropertyLinkedClass
	PropertyMin
	PropertyMax
	PropertyMandatory
	PropertyNotNull
	PropertyReadOnly
	PropertyDefault
	PropertyRegexp
	PropertyCollate
	PropertyDescription
	PropertyCustom
)

var propertyAttrNames = [...]string{
	PropertyName:        "name",
	PropertyType:        "type",
	PropertyLinkedType:  "linkedtype",
	PropertyLinkedClass: "linkedclass",
	PropertyMin:         "min",
	PropertyMax:         "max",
	PropertyMandatory:   "mandatory",
	PropertyNotNull:     "notnull",
	PropertyReadOnly:    "readonly",
	PropertyDefault:     "default",
	PropertyRegexp:      "regexp",
	PropertyCollate:     "collate",
	PropertyDescription: "description",
	PropertyCustom:      "custom",
}

func (a PropertyAttr) String() string {
	if a < 0 || int(a) >= len(propertyAttrNames) {
		return "PropertyAttr(" + strconv.Itoa(int(a)) + ")"
	}
	return propertyAttrNames[a]
}

// ParsePropertyAttr returns the attribute with a given name, ignoring case.
func ParsePropertyAttr(s string) (PropertyAttr, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range propertyAttrNames {
		if n == s {
			return PropertyAttr(i), nil
		}
	}
	return 0, markf(ErrNotFound, "unknown property attribute %q", s)
}

const (
	CollateDefault = "default"
	// CollateCI compares strings ignoring case.
	CollateCI = "ci"
)

// PropertyOptions are the optional parts of a property declaration.
type PropertyOptions struct {
	LinkedType  types.Tag
	LinkedClass string
	// Unsafe skips the check of already stored values.
	Unsafe bool
}

type property struct {
	global *GlobalProperty
	owner  *class

	linkedType  types.Tag
	linkedClass *class

	notNull   bool
	mandatory bool
	readOnly  bool

	min, max     string
	defaultValue string
	regexp       string
	collate      string
	description  string
	custom       map[string]string
}

func (p *property) name() string     { return p.global.Name }
func (p *property) tag() types.Tag   { return p.global.Type }
func (p *property) fullName() string { return p.owner.name + "." + p.global.Name }

func (p *property) linkedClassName() string {
	if p.linkedClass == nil {
		return ""
	}
	return p.linkedClass.name
}

func checkPropertyName(name string) error {
	if name == "" {
		return markf(ErrInvalidName, "property name is empty")
	}
	if strings.ContainsAny(name, ".:,; \t\r\n`") {
		return markf(ErrInvalidName, "property name %q contains a reserved character", name)
	}
	return nil
}

func checkLinked(tag, linkedType types.Tag, linkedClass string) error {
	if !tag.Valid() {
		return markf(ErrTypeConflict, "invalid property type")
	}
	if linkedType != types.Invalid {
		if !tag.AcceptsLinkedType() {
			return markf(ErrTypeConflict, "linked type is not supported by %v", tag)
		}
		if !linkedType.Valid() {
			return markf(ErrTypeConflict, "invalid linked type")
		}
	}
	if linkedClass != "" && !tag.AcceptsLinkedClass() {
		return markf(ErrTypeConflict, "linked class is not supported by %v", tag)
	}
	return nil
}

// lengthMeasured reports if min and max of the tag bound a length or a count.
func lengthMeasured(t types.Tag) bool {
	return t == types.String || t == types.Binary || t.IsMultiValue()
}

// parseBound parses a min or max attribute. An empty bound is nil.
func parseBound(conv *types.Converter, t types.Tag, s string) (types.Value, error) {
	if s == "" {
		return nil, nil
	}
	switch {
	case lengthMeasured(t):
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, markf(ErrTypeConflict, "bound %q of %v is not a length", s, t)
		}
		return types.Int32(n), nil
	case t.IsNumeric(), t.IsTemporal():
		v, err := conv.Convert(types.Text(s), t, types.Invalid, "")
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, markf(ErrTypeConflict, "min and max are not supported by %v", t)
}

func (p *property) checkAttrs(conv *types.Converter) error {
	lo, err := parseBound(conv, p.tag(), p.min)
	if err != nil {
		return err
	}
	hi, err := parseBound(conv, p.tag(), p.max)
	if err != nil {
		return err
	}
	if lo != nil && hi != nil {
		if c, err := types.Compare(lo, hi); err == nil && c > 0 {
			return markf(ErrIllegalState, "min %s of %s is greater than max %s", p.min, p.fullName(), p.max)
		}
	}
	if p.defaultValue != "" {
		if _, err := conv.Convert(types.Text(p.defaultValue), p.tag(), p.linkedType, p.linkedClassName()); err != nil {
			return err
		}
	}
	if p.regexp != "" {
		if _, err := regexp.Compile(p.regexp); err != nil {
			return markf(ErrIllegalState, "invalid regexp of %s: %v", p.fullName(), err)
		}
	}
	switch p.collate {
	case "", CollateDefault, CollateCI:
	default:
		return markf(ErrNotFound, "unknown collate %q", p.collate)
	}
	return nil
}

// dropStaleAttrs clears the bounds and the default value that do not parse
// under the current type and returns the names of the cleared attributes.
func (p *property) dropStaleAttrs(conv *types.Converter) []string {
	var cleared []string
	if _, err := parseBound(conv, p.tag(), p.min); err != nil {
		p.min = ""
		cleared = append(cleared, "min")
	}
	if _, err := parseBound(conv, p.tag(), p.max); err != nil {
		p.max = ""
		cleared = append(cleared, "max")
	}
	if p.defaultValue != "" {
		if _, err := conv.Convert(types.Text(p.defaultValue), p.tag(), p.linkedType, p.linkedClassName()); err != nil {
			p.defaultValue = ""
			cleared = append(cleared, "default")
		}
	}
	if err := p.checkAttrs(conv); err != nil && p.min != "" && p.max != "" {
		// min > max after a change of ordering
		p.min, p.max = "", ""
		cleared = append(cleared, "min", "max")
	}
	return cleared
}

func (p *property) clone(owner *class) *property {
	cp := *p
	cp.owner = owner
	cp.custom = cloneCustom(p.custom)
	return &cp
}

func cloneCustom(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// setCustom sets a custom key. An empty or "null" value removes it.
func setCustom(m map[string]string, key, value string) (map[string]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return m, markf(ErrInvalidName, "custom key is empty")
	}
	if value == "" || strings.EqualFold(value, "null") {
		delete(m, key)
		return m, nil
	}
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m, nil
}

// parseCustom splits a "key=value" attribute.
func parseCustom(s string) (key, value string, err error) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", "", markf(ErrInvalidName, "custom attribute %q must be key=value", s)
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, markf(ErrTypeConflict, "%q is not a boolean", s)
	}
	return b, nil
}
