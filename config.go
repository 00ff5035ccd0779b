package anstore

import (
	"context"
	"errors"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fmeng/anstore/config"
	"github.com/fmeng/anstore/core"
	"github.com/fmeng/anstore/introspect"
)

// Config represents the configuration required to build a Registry.
type Config struct {
	ModuleDirs   []string              // Directories holding the go.mod of the modules to read. The first one is the main module.
	Roots        []string              // Scan roots added when the registry is created.
	Viper        *viper.Viper          // Configuration read for scan roots at every accessor.
	Sources      []core.RootSource     // Additional root sources.
	Logger       *zap.Logger           // Logger shared by the registry and the introspector.
	Metrics      prometheus.Registerer // Optional registerer for registry metrics.
	CacheSize    int                   // Number of parsed packages kept in memory.
	Concurrency  int                   // Number of packages parsed in parallel.
	IncludeTests bool                  // Whether _test.go files are read.

	// OnMalformed is called for every marker skipped as malformed.
	OnMalformed func(*MalformedMarkerError)
}

// ConfigFunc defines a function that can modify or validate a Config.
type ConfigFunc func(*Config) error

// Validate applies the given validators in order and stops at the first error.
func (c *Config) Validate(validators ...ConfigFunc) error {
	for _, fn := range validators {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// WithModuleDirs sets the module directories if none are provided.
func WithModuleDirs(dirs ...string) ConfigFunc {
	return func(c *Config) error {
		if len(c.ModuleDirs) == 0 {
			c.ModuleDirs = append([]string(nil), dirs...)
		}
		if len(c.ModuleDirs) == 0 {
			return errors.New("at least one module directory is required")
		}
		return nil
	}
}

// WithLogger installs a no-op logger if none is provided.
func WithLogger(c *Config) error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

func WithCacheSize(size int) ConfigFunc {
	return func(c *Config) error {
		if c.CacheSize < 0 {
			return errors.New("cache size cannot be negative")
		}
		if c.CacheSize == 0 {
			c.CacheSize = size
		}
		return nil
	}
}

func WithConcurrency(n int) ConfigFunc {
	return func(c *Config) error {
		if c.Concurrency < 0 {
			return errors.New("concurrency cannot be negative")
		}
		if c.Concurrency == 0 {
			c.Concurrency = n
		}
		return nil
	}
}

// WithViper loads roots from the environment when no viper instance is provided.
func WithViper(c *Config) error {
	if c.Viper != nil {
		return nil
	}
	v, err := config.Load(context.Background(), config.LoadOptions{})
	if err != nil {
		return err
	}
	c.Viper = v
	return nil
}

// defaultValidators fills every unset field.
func defaultValidators() []ConfigFunc {
	return []ConfigFunc{
		WithModuleDirs("."),
		WithLogger,
		WithCacheSize(introspect.DefaultCacheSize),
		WithConcurrency(runtime.GOMAXPROCS(0)),
		WithViper,
	}
}
