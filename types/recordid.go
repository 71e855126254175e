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

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordID addresses a record by its partition and position in it.
type RecordID struct {
	Partition int32
	Position  int64
}

// NewRecordID is the identity of a record that was not stored yet.
var NewRecordID = RecordID{Partition: -1, Position: -1}

// IsPersistent reports if the id points to a stored record.
func (id RecordID) IsPersistent() bool {
	return id.Partition >= 0 && id.Position >= 0
}

// String returns the "#partition:position" text form.
func (id RecordID) String() string {
	return "#" + strconv.FormatInt(int64(id.Partition), 10) + ":" + strconv.FormatInt(id.Position, 10)
}

func (id RecordID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	v, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// ParseRecordID parses the "#partition:position" text form. The leading
// '#' is optional.
func ParseRecordID(s string) (RecordID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return RecordID{}, fmt.Errorf("types: invalid record id %q", s)
	}
	p, err := strconv.ParseInt(s[:i], 10, 32)
	if err != nil {
		return RecordID{}, fmt.Errorf("types: invalid record id partition %q: %v", s, err)
	}
	pos, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return RecordID{}, fmt.Errorf("types: invalid record id position %q: %v", s, err)
	}
	return RecordID{Partition: int32(p), Position: pos}, nil
}
