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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config defines how a catalog and its record store are opened.
type Config struct {
	Store     Store     `json:"store"`
	Catalog   Catalog   `json:"catalog"`
	Migration Migration `json:"migration"`
}

type Store struct {
	Backend string                 `json:"backend"`
	Path    string                 `json:"path"`
	Options map[string]interface{} `json:"options"`
}

type Catalog struct {
	DateTimeFormat     string `json:"datetime_format"`
	DateFormat         string `json:"date_format"`
	Timezone           string `json:"timezone"`
	DefaultPartitions  int    `json:"default_partitions"`
	PartitionSelection string `json:"partition_selection"`
	GraphRoots         bool   `json:"graph_roots"`
	CreateRetries      int    `json:"create_retries"`
}

type Migration struct {
	BatchSize   int
	Parallelism int
	Timeout     time.Duration
}

type migration struct {
	BatchSize   int      `json:"batch_size"`
	Parallelism int      `json:"parallelism"`
	Timeout     duration `json:"timeout"`
}

func (m *Migration) UnmarshalJSON(data []byte) error {
	var t migration
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*m = Migration{
		BatchSize:   t.BatchSize,
		Parallelism: t.Parallelism,
		Timeout:     time.Duration(t.Timeout),
	}
	return nil
}

func (m Migration) MarshalJSON() ([]byte, error) {
	return json.Marshal(migration{
		BatchSize:   m.BatchSize,
		Parallelism: m.Parallelism,
		Timeout:     duration(m.Timeout),
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: Store{Backend: "memstore"},
		Catalog: Catalog{
			DateTimeFormat:     "%Y-%m-%d %H:%M:%S",
			DateFormat:         "%Y-%m-%d",
			Timezone:           "UTC",
			DefaultPartitions:  1,
			PartitionSelection: "round-robin",
			GraphRoots:         true,
			CreateRetries:      3,
		},
		Migration: Migration{
			BatchSize:   1000,
			Parallelism: 4,
		},
	}
}

// Location returns the configured time zone.
func (c Catalog) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// duration is a time.Duration that satisfies the
// json.UnMarshaler and json.Marshaler interfaces.
type duration time.Duration

// UnmarshalJSON unmarshals a duration according to the following scheme:
//   - If the element is absent the duration is zero.
//   - If the element is a string parsable as a time.Duration, the parsed value is kept.
//   - If the element is parsable as a number, that number of seconds is kept.
func (d *duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*d = 0
		return nil
	}
	text := string(data)
	if s, err := strconv.Unquote(text); err == nil {
		text = s
	}
	t, err := time.ParseDuration(text)
	if err == nil {
		*d = duration(t)
		return nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		*d = duration(time.Duration(i) * time.Second)
		return nil
	}
	// This hack is to get around strconv.ParseFloat
	// not handling e-notation for integers.
	f, err := strconv.ParseFloat(text, 64)
	*d = duration(f * float64(time.Second))
	return err
}

func (d duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// Load reads a JSON-encoded config contained in the given file on top of
// the defaults. The defaults are returned if the filename is empty.
func Load(file string) (*Config, error) {
	config := Default()
	if file == "" {
		return config, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("could not open config file %q: %v", file, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	err = dec.Decode(config)
	if err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %v", file, err)
	}
	return config, nil
}
