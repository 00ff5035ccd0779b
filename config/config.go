// Package config reads scan roots from configuration.
//
// Roots live under the prefix "anstore.scan.roots". The prefix itself and every
// key below it contribute, so independent parts of a program can each register
// their own roots:
//
//	anstore:
//	  scan:
//	    roots:
//	      app: example.com/shop/entity, example.com/shop/billing
//	      plugins: [example.com/plugins]
//
// Environment variables ANSTORE_SCAN_ROOTS_<SUFFIX> map to "anstore.scan.roots.<suffix>".
// Roots given for the prefix itself (ANSTORE_SCAN_ROOTS, SetRoots with no suffix,
// a plain value in the config file) are kept under "anstore.scan.roots._", so
// they never share a viper node with suffixed keys.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// RootsKey is the configuration prefix of scan roots.
	RootsKey = "anstore.scan.roots"
	// EnvPrefix is the environment variable naming RootsKey.
	EnvPrefix = "ANSTORE_SCAN_ROOTS"
	// BareKey holds the roots registered for RootsKey itself.
	BareKey = RootsKey + "._"
)

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an optional yaml, toml or json file.
	ConfigFile string
	// Environ is a list of KEY=value pairs. Nil means os.Environ().
	Environ []string
}

// Load builds a viper instance holding the scan roots of the config file and
// of the environment. Environment values win over file values of the same key.
func Load(ctx context.Context, opts LoadOptions) (*viper.Viper, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.ConfigFile, err)
		}
		// A plain value at the prefix would be replaced by the first suffixed key set.
		if raw := v.Get(RootsKey); raw != nil {
			if _, nested := raw.(map[string]any); !nested {
				v.Set(BareKey, raw)
			}
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key, ok := envKey(name); ok {
			v.Set(key, value)
		}
	}
	return v, nil
}

// envKey maps ANSTORE_SCAN_ROOTS[_SUFFIX] to its configuration key.
func envKey(name string) (string, bool) {
	if name == EnvPrefix {
		return BareKey, true
	}
	suffix, ok := strings.CutPrefix(name, EnvPrefix+"_")
	if !ok || suffix == "" {
		return "", false
	}
	return RootsKey + "." + strings.ToLower(suffix), true
}

// SetRoots registers roots under RootsKey.<suffix>, or under BareKey when
// suffix is empty. Roots of other suffixes are kept.
func SetRoots(v *viper.Viper, suffix string, roots ...string) {
	key := BareKey
	if suffix != "" {
		key = RootsKey + "." + strings.ToLower(suffix)
	}
	v.Set(key, append([]string(nil), roots...))
}
