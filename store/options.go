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

package store

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Options are backend specific settings, usually read from a config file.
type Options map[string]interface{}

var typeInt = reflect.TypeOf(int(0))

func (d Options) IntKey(key string, def int) (int, error) {
	if val, ok := d[key]; ok {
		if val != nil && reflect.TypeOf(val).ConvertibleTo(typeInt) {
			i := reflect.ValueOf(val).Convert(typeInt).Int()
			return int(i), nil
		}
		return def, errors.Newf("invalid %s parameter type from config: %T", key, val)
	}
	return def, nil
}

func (d Options) StringKey(key string, def string) (string, error) {
	if val, ok := d[key]; ok {
		if v, ok := val.(string); ok {
			return v, nil
		}
		return def, errors.Newf("invalid %s parameter type from config: %T", key, val)
	}
	return def, nil
}

func (d Options) BoolKey(key string, def bool) (bool, error) {
	if val, ok := d[key]; ok {
		if v, ok := val.(bool); ok {
			return v, nil
		}
		return def, errors.Newf("invalid %s parameter type from config: %T", key, val)
	}
	return def, nil
}
