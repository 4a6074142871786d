package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/brawer/globemesh/mesh"
	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Mesh        MeshConfig        `mapstructure:"mesh"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
	Collections map[string]string `mapstructure:"collections"`
}

type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	PublicPath   string `mapstructure:"public_path"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// MeshConfig holds the conversion defaults. Query parameters override them
// per request.
type MeshConfig struct {
	Mode                   string  `mapstructure:"mode"`
	Radius                 float64 `mapstructure:"radius"`
	SamplesPerUnitDistance float64 `mapstructure:"samples_per_unit_distance"`
	FillPolygons           bool    `mapstructure:"fill_polygons"`
	ExtrudeHeight          float64 `mapstructure:"extrude_height"`
	Workers                int     `mapstructure:"workers"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads defaults, the config file at path (or ./globemesh.yaml if
// path is empty and the file exists), GLOBEMESH_* environment variables and
// finally overrides, in increasing order of precedence.
func LoadConfig(path string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.public_path", "http://localhost:8080/")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("mesh.mode", "sphere")
	v.SetDefault("mesh.radius", 0)
	v.SetDefault("mesh.samples_per_unit_distance", mesh.DefaultSamplesPerUnitDistance)
	v.SetDefault("mesh.fill_polygons", true)
	v.SetDefault("mesh.extrude_height", 0)
	v.SetDefault("mesh.workers", 0)
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("globemesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// GLOBEMESH_MESH_MODE → mesh.mode
	v.SetEnvPrefix("GLOBEMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable. An empty collection
// list is allowed here; main insists on at least one.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Listen == "" {
		errs = append(errs, "server.listen is required")
	}
	if u, err := url.Parse(c.Server.PublicPath); err != nil {
		errs = append(errs, fmt.Sprintf("server.public_path: %v", err))
	} else if !strings.HasSuffix(u.Path, "/") {
		errs = append(errs, fmt.Sprintf("server.public_path must end in /, got %q", c.Server.PublicPath))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if _, err := mesh.ParseMode(c.Mesh.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("mesh.mode: %v", err))
	}
	if c.Mesh.Radius < 0 {
		errs = append(errs, fmt.Sprintf("mesh.radius must not be negative, got %g", c.Mesh.Radius))
	}
	if c.Mesh.SamplesPerUnitDistance < 0 {
		errs = append(errs, fmt.Sprintf("mesh.samples_per_unit_distance must not be negative, got %g",
			c.Mesh.SamplesPerUnitDistance))
	}
	if c.Mesh.ExtrudeHeight < 0 {
		errs = append(errs, fmt.Sprintf("mesh.extrude_height must not be negative, got %g", c.Mesh.ExtrudeHeight))
	}
	if c.Mesh.Workers < 0 {
		errs = append(errs, fmt.Sprintf("mesh.workers must not be negative, got %d", c.Mesh.Workers))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	for name, path := range c.Collections {
		if name == "" || path == "" {
			errs = append(errs, fmt.Sprintf("collection %q has no name or path", name+"="+path))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// BuilderOptions turns the mesh section into conversion defaults.
func (c *Config) BuilderOptions() (mesh.Options, error) {
	mode, err := mesh.ParseMode(c.Mesh.Mode)
	if err != nil {
		return mesh.Options{}, err
	}
	opts := mesh.DefaultOptions(mode)
	if c.Mesh.Radius > 0 {
		opts.Radius = c.Mesh.Radius
	}
	if mode == mesh.Spherical {
		opts.SamplesPerUnitDistance = c.Mesh.SamplesPerUnitDistance
	}
	opts.FillPolygons = c.Mesh.FillPolygons
	opts.ExtrudeHeight = c.Mesh.ExtrudeHeight
	return opts, nil
}

// parseCollections parses the -collections flag: name=path pairs separated
// by commas.
func parseCollections(s string) (map[string]string, error) {
	coll := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return coll, nil
	}
	for _, item := range strings.Split(s, ",") {
		p := strings.SplitN(item, "=", 2)
		if len(p) != 2 || p[0] == "" || p[1] == "" {
			return nil, fmt.Errorf("malformed collection %q; pass something like countries=path/to/countries.geojson", item)
		}
		coll[p[0]] = p[1]
	}
	return coll, nil
}
