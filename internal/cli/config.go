package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/filedb/adapter"
	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/engine"
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/schema"
)

// EnvPrefix prefixes the environment variables that override config keys,
// e.g. FILEDB_PATH or FILEDB_SYNC.
const EnvPrefix = "FILEDB"

// Config describes the store the CLI operates on.
type Config struct {
	// Path is the store file or directory. Relative paths are resolved
	// against the directory of the config file.
	Path string `mapstructure:"path"`

	// Format and Layout pick the adapter. When both are empty the adapter
	// is chosen from the extension of Path.
	Format string `mapstructure:"format"`
	Layout string `mapstructure:"layout"`

	// Sync is a sync policy: manual, every-write or periodic:<duration>.
	Sync string `mapstructure:"sync"`

	// Compact disables pretty-printed JSON.
	Compact bool `mapstructure:"compact"`

	Models []ModelConfig `mapstructure:"models"`

	// dir is the directory of the config file, or "" when none was read.
	dir string
}

// ModelConfig declares one document model.
type ModelConfig struct {
	Name string `mapstructure:"name"`

	// ID is the document field holding the record id. Defaults to "id".
	ID string `mapstructure:"id"`

	// Columns fixes the CSV header. Document models need it for CSV stores.
	Columns []string `mapstructure:"columns"`

	// Schema is inline CUE source; SchemaFile is a path to a .cue file.
	Schema     string `mapstructure:"schema"`
	SchemaFile string `mapstructure:"schema_file"`
}

// LoadConfig reads path, or filedb.yaml from the working directory when
// path is empty, and applies FILEDB_* environment overrides.
// A missing default config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("path", "")
	v.SetDefault("format", "")
	v.SetDefault("layout", "")
	v.SetDefault("sync", engine.Manual().String())
	v.SetDefault("compact", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("filedb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.dir = filepath.Dir(used)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Path == "" {
		return fmt.Errorf("store path is not configured: set path in the config file or %s_PATH", EnvPrefix)
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Schema != "" && m.SchemaFile != "" {
			return fmt.Errorf("model %s: schema and schema_file are mutually exclusive", m.Name)
		}
	}
	return nil
}

// StorePath returns Path resolved against the config directory.
func (c *Config) StorePath() string {
	return c.resolve(c.Path)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Policy parses Sync.
func (c *Config) Policy() (engine.SyncPolicy, error) {
	return engine.ParseSyncPolicy(c.Sync)
}

// Adapter builds the adapter for the configured store.
func (c *Config) Adapter() (adapter.Adapter, error) {
	return buildAdapter(c.StorePath(), c.Format, c.Layout, c.Compact)
}

func buildAdapter(path, format, layout string, compact bool) (adapter.Adapter, error) {
	var opts []adapter.Option
	if compact {
		opts = append(opts, adapter.Compact())
	}
	if format == "" && layout == "" {
		return adapter.ForPath(path, opts...), nil
	}

	f := adapter.FormatJSON
	if format != "" {
		parsed, err := adapter.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		f = parsed
	}
	l := defaultLayout(f)
	if layout != "" {
		parsed, err := adapter.ParseLayout(layout)
		if err != nil {
			return nil, err
		}
		l = parsed
	}
	return adapter.New(f, l, path, opts...)
}

func defaultLayout(f adapter.Format) adapter.Layout {
	if f == adapter.FormatCSV {
		return adapter.LayoutPartitioned
	}
	return adapter.LayoutUnified
}

// catalog holds the typed document models built from a Config.
type catalog struct {
	registry *model.Registry
	models   map[string]*model.Model[model.Document, string]
	idFields map[string]string
}

func (c *Config) catalog() (*catalog, error) {
	cat := &catalog{
		models:   make(map[string]*model.Model[model.Document, string], len(c.Models)),
		idFields: make(map[string]string, len(c.Models)),
	}
	descriptors := make([]model.Descriptor, 0, len(c.Models))
	for _, mc := range c.Models {
		idField := mc.ID
		if idField == "" {
			idField = "id"
		}
		var opts []model.Option
		if len(mc.Columns) > 0 {
			opts = append(opts, model.WithColumns(mc.Columns...))
		}
		validator, err := c.validator(mc)
		if err != nil {
			return nil, err
		}
		if validator != nil {
			opts = append(opts, model.WithValidator(validator))
		}
		m := model.DefineDocument(mc.Name, idField, opts...)
		cat.models[mc.Name] = m
		cat.idFields[mc.Name] = idField
		descriptors = append(descriptors, m)
	}
	reg, err := model.NewRegistry(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	cat.registry = reg
	return cat, nil
}

func (c *Config) validator(mc ModelConfig) (model.Validator, error) {
	switch {
	case mc.Schema != "":
		s, err := schema.Compile(mc.Schema)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", mc.Name, err)
		}
		return s, nil
	case mc.SchemaFile != "":
		s, err := schema.CompileFile(c.resolve(mc.SchemaFile))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", mc.Name, err)
		}
		return s, nil
	}
	return nil, nil
}

func (c *catalog) lookup(name string) (*model.Model[model.Document, string], error) {
	m, ok := c.models[name]
	if !ok {
		return nil, dberr.UnknownModel(name)
	}
	return m, nil
}
