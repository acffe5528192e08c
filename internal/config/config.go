// Package config holds the command-line tool's settings, read from an
// optional YAML file and overridden by flags.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the full tool configuration.
type Config struct {
	Layers    int           `yaml:"layers"`
	Workers   int           `yaml:"workers"`
	LogLevel  string        `yaml:"log_level"`
	Addr      string        `yaml:"addr"`
	PaceBatch int           `yaml:"pace_batch"`
	PaceDelay time.Duration `yaml:"pace_delay"`
}

// Default returns the built-in configuration: raw records only, one worker
// per CPU.
func Default() Config {
	return Config{
		Layers:    0,
		Workers:   0,
		LogLevel:  "info",
		Addr:      ":8080",
		PaceBatch: 200,
		PaceDelay: 5 * time.Millisecond,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no command can work with.
func (c Config) Validate() error {
	if c.Layers < 0 {
		return errors.Errorf("layers must be >= 0, got %d", c.Layers)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// BindFlags registers flags for every setting, defaulting to c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Layers, "layers", "l", c.Layers, "number of protocol layers to decode (0 = raw records only)")
	fs.IntVarP(&c.Workers, "workers", "w", c.Workers, "decode workers (0 = GOMAXPROCS)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address for serve")
	fs.IntVar(&c.PaceBatch, "pace-batch", c.PaceBatch, "packets sent to clients between pauses (0 = no pacing)")
	fs.DurationVar(&c.PaceDelay, "pace-delay", c.PaceDelay, "pause between paced batches")
}

// Merge copies into c every flag the user set explicitly in fs, taking the
// value from flags. Settings from a file survive unless overridden.
func (c *Config) Merge(flags Config, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "layers":
			c.Layers = flags.Layers
		case "workers":
			c.Workers = flags.Workers
		case "log-level":
			c.LogLevel = flags.LogLevel
		case "addr":
			c.Addr = flags.Addr
		case "pace-batch":
			c.PaceBatch = flags.PaceBatch
		case "pace-delay":
			c.PaceDelay = flags.PaceDelay
		}
	})
}

// ApplyLogging configures the standard logrus logger.
func (c Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
