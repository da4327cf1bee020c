package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultWorkers       = 0
	DefaultCacheEnabled  = true
	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "text"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Default returns the default configuration. Output.Root has no default.
func Default() *Config {
	return &Config{
		Engine: EngineSection{
			Workers: DefaultWorkers,
		},
		Cache: CacheSection{
			Enabled: DefaultCacheEnabled,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Watch: WatchSection{
			Debounce: DefaultWatchDebounce,
		},
	}
}

// CacheDir returns the header cache directory, falling back to
// <user cache dir>/amrsnap/headers.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "amrsnap", "headers"), nil
}
