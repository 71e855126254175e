package command

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/internal/config"
	"github.com/cayleygraph/catalog/migrate"
	"github.com/cayleygraph/catalog/schema"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

const (
	KeyBackend = "store.backend"
	KeyPath    = "store.path"
	KeyOptions = "store.options"

	KeyDateTimeFormat    = "catalog.datetime_format"
	KeyDateFormat        = "catalog.date_format"
	KeyTimezone          = "catalog.timezone"
	KeyDefaultPartitions = "catalog.default_partitions"
	KeySelection         = "catalog.partition_selection"
	KeyGraphRoots        = "catalog.graph_roots"
	KeyCreateRetries     = "catalog.create_retries"

	KeyMigrationBatch       = "migration.batch_size"
	KeyMigrationParallelism = "migration.parallelism"
	KeyMigrationTimeout     = "migration.timeout"
)

// LoadConfig reads a config file and installs its values as defaults of the
// viper keys, so flags and environment variables still take precedence.
func LoadConfig(file string) error {
	cfg, err := config.Load(file)
	if err != nil {
		return err
	}
	if file != "" {
		clog.Infof("using config file %q", file)
	}
	viper.SetDefault(KeyBackend, cfg.Store.Backend)
	viper.SetDefault(KeyPath, cfg.Store.Path)
	if cfg.Store.Options != nil {
		viper.SetDefault(KeyOptions, cfg.Store.Options)
	}
	viper.SetDefault(KeyDateTimeFormat, cfg.Catalog.DateTimeFormat)
	viper.SetDefault(KeyDateFormat, cfg.Catalog.DateFormat)
	viper.SetDefault(KeyTimezone, cfg.Catalog.Timezone)
	viper.SetDefault(KeyDefaultPartitions, cfg.Catalog.DefaultPartitions)
	viper.SetDefault(KeySelection, cfg.Catalog.PartitionSelection)
	viper.SetDefault(KeyGraphRoots, cfg.Catalog.GraphRoots)
	viper.SetDefault(KeyCreateRetries, cfg.Catalog.CreateRetries)
	viper.SetDefault(KeyMigrationBatch, cfg.Migration.BatchSize)
	viper.SetDefault(KeyMigrationParallelism, cfg.Migration.Parallelism)
	viper.SetDefault(KeyMigrationTimeout, cfg.Migration.Timeout)
	return nil
}

// Handle is an open backend together with the catalog stored in it.
type Handle struct {
	Backend store.Backend
	Catalog *schema.Catalog
}

func (h *Handle) Close() error {
	return h.Backend.Close()
}

func printBackendInfo() {
	name := viper.GetString(KeyBackend)
	path := viper.GetString(KeyPath)
	if path != "" {
		path = " (" + path + ")"
	}
	clog.Infof("using backend %q%s", name, path)
}

func storeOptions() store.Options {
	return store.Options(viper.GetStringMap(KeyOptions))
}

func initDatabase() error {
	name := viper.GetString(KeyBackend)
	if store.IsRegistered(name) && !store.IsPersistent(name) {
		return store.ErrNotPersistent
	}
	return store.Init(name, viper.GetString(KeyPath), storeOptions())
}

func newConverter() (*types.Converter, error) {
	loc := time.UTC
	if tz := viper.GetString(KeyTimezone); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, errors.Wrapf(err, "timezone %q", tz)
		}
	}
	return &types.Converter{
		DateTimeFormat: viper.GetString(KeyDateTimeFormat),
		DateFormat:     viper.GetString(KeyDateFormat),
		Location:       loc,
	}, nil
}

func catalogOptions() schema.Options {
	return schema.Options{
		DefaultPartitions: viper.GetInt(KeyDefaultPartitions),
		Selection:         viper.GetString(KeySelection),
		GraphRoots:        viper.GetBool(KeyGraphRoots),
		CreateRetries:     viper.GetInt(KeyCreateRetries),
	}
}

func openDatabase(ctx context.Context) (*Handle, error) {
	name := viper.GetString(KeyBackend)
	b, err := store.Open(name, viper.GetString(KeyPath), storeOptions())
	if err != nil {
		return nil, err
	}
	if !store.IsPersistent(name) {
		clog.Warningf("backend %q is not persistent, changes are lost on exit", name)
	}
	conv, err := newConverter()
	if err != nil {
		b.Close()
		return nil, err
	}
	c, err := schema.Open(ctx, schema.Deps{
		Records:   b,
		Indexes:   b,
		Meta:      b,
		Converter: conv,
	}, catalogOptions())
	if err != nil {
		b.Close()
		return nil, err
	}
	c.SetMigrator(&migrate.Runner{
		Store:       b,
		Partitions:  c,
		BatchSize:   viper.GetInt(KeyMigrationBatch),
		Parallelism: viper.GetInt(KeyMigrationParallelism),
		Timeout:     viper.GetDuration(KeyMigrationTimeout),
	})
	return &Handle{Backend: b, Catalog: c}, nil
}

// withCatalog opens the catalog for the duration of fn.
func withCatalog(cmd *cobra.Command, fn func(ctx context.Context, h *Handle) error) error {
	printBackendInfo()
	p := mustSetupProfile(cmd)
	defer mustFinishProfile(p)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(ctx, h)
}

type profileData struct {
	cpuProfile *os.File
	memPath    string
}

func mustSetupProfile(cmd *cobra.Command) profileData {
	p := profileData{}
	if mpp := cmd.Flag("memprofile"); mpp != nil {
		p.memPath = mpp.Value.String()
	}
	cpp := cmd.Flag("cpuprofile")
	if cpp == nil {
		return p
	}
	if v := cpp.Value.String(); v != "" {
		f, err := os.Create(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open CPU profile file %s\n", v)
			os.Exit(1)
		}
		p.cpuProfile = f
		pprof.StartCPUProfile(f)
	}
	return p
}

func mustFinishProfile(p profileData) {
	if p.cpuProfile != nil {
		pprof.StopCPUProfile()
		p.cpuProfile.Close()
	}
	if p.memPath != "" {
		f, err := os.Create(p.memPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open memory profile file %s\n", p.memPath)
			os.Exit(1)
		}
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile file %s\n", p.memPath)
		}
		f.Close()
	}
}
