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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/cmd/schemactl/command"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/version"

	// Use the glog logger.
	_ "github.com/cayleygraph/catalog/clog/glog"

	// Load all supported backends.
	_ "github.com/cayleygraph/catalog/store/kv/all"
	_ "github.com/cayleygraph/catalog/store/memstore"

	// Load quad formats used by dump.
	_ "github.com/cayleygraph/quad/nquads"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schemactl",
		Short:         "Inspect and change the schema catalog of a record store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// flags from the standard library, used by glog
			flag.CommandLine.Parse([]string{})
			clog.Infof("schemactl version: %s (%s)", version.Version, version.GitHash)
			file, _ := cmd.Flags().GetString("config")
			if file == "" {
				file = os.Getenv("CATALOG_CFG")
			}
			return command.LoadConfig(file)
		},
	}
	root.AddCommand(
		command.NewInitDatabaseCmd(),
		command.NewClassCmd(),
		command.NewPropertyCmd(),
		command.NewIndexCmd(),
		command.NewDumpCmd(),
		command.NewHttpCmd(),
		command.NewHealthCmd(),
		command.NewVersionCmd(),
	)
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to an explicit configuration file")
	pf.StringP("backend", "d", "", `storage backend to use ("`+strings.Join(store.Backends(), `", "`)+`")`)
	pf.StringP("path", "a", "", "path to the database")
	pf.String("datetime_format", "", "strftime layout of DATETIME values")
	pf.String("date_format", "", "strftime layout of DATE values")
	pf.String("timezone", "", "time zone of the database")
	pf.Int("partitions", 0, "partitions allocated for a new class by default")
	pf.String("partition_selection", "", `partition selection strategy of new classes ("round-robin", "balanced" or "default")`)
	pf.Int("migration_parallelism", 0, "number of partitions migrated in parallel")
	pf.Duration("migration_timeout", 0, "time limit of a single record migration")

	// bind flag names to keys
	viper.BindPFlag(command.KeyBackend, pf.Lookup("backend"))
	viper.BindPFlag(command.KeyPath, pf.Lookup("path"))
	viper.BindPFlag(command.KeyDateTimeFormat, pf.Lookup("datetime_format"))
	viper.BindPFlag(command.KeyDateFormat, pf.Lookup("date_format"))
	viper.BindPFlag(command.KeyTimezone, pf.Lookup("timezone"))
	viper.BindPFlag(command.KeyDefaultPartitions, pf.Lookup("partitions"))
	viper.BindPFlag(command.KeySelection, pf.Lookup("partition_selection"))
	viper.BindPFlag(command.KeyMigrationParallelism, pf.Lookup("migration_parallelism"))
	viper.BindPFlag(command.KeyMigrationTimeout, pf.Lookup("migration_timeout"))

	pf.String("cpuprofile", "", "path to output CPU profile")
	pf.String("memprofile", "", "path to output memory profile")

	// glog flags
	pf.AddGoFlagSet(flag.CommandLine)
	return root
}

func main() {
	viper.SetEnvPrefix("CATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
