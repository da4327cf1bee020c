package config

import "time"

// Config is the root configuration for amrsnap.
type Config struct {
	Output  OutputSection  `koanf:"output"`
	Engine  EngineSection  `koanf:"engine"`
	Cache   CacheSection   `koanf:"cache"`
	Log     LogSection     `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
	Watch   WatchSection   `koanf:"watch"`
}

// OutputSection locates the simulation output tree.
type OutputSection struct {
	Root string `koanf:"root"`
}

// EngineSection tunes reconstruction.
type EngineSection struct {
	// Workers bounds concurrent shard reads. Zero means GOMAXPROCS.
	Workers int `koanf:"workers"`
}

// CacheSection configures the persistent header cache.
type CacheSection struct {
	Enabled bool `koanf:"enabled"`
	// Dir holds the cache database. Empty means the user cache directory.
	Dir string `koanf:"dir"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint of watch.
type MetricsSection struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// WatchSection configures the output tree watcher.
type WatchSection struct {
	Debounce time.Duration `koanf:"debounce"`
}
