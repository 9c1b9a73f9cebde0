package brightchain

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config configures a node. The zero value plus a store path is a
// working configuration; every other field has a default.
type Config struct {
	// StorePath is the block store directory. Empty means an in-memory
	// store, used by tests and throwaway nodes.
	StorePath string `yaml:"storePath"`
	// MinimumFreeGB is a free-space threshold checked when the on-disk
	// store opens. Zero disables the check.
	MinimumFreeGB int `yaml:"minimumFreeGB"`
	// Pool is the store pool blocks are written to. Defaults to
	// "primary".
	Pool string `yaml:"pool"`
	// TupleSize is the whitening tuple width. Defaults to 3.
	TupleSize int `yaml:"tupleSize"`
	// MaxBlockSize caps the block size chosen for stored files; larger
	// files split across more blocks instead. Zero means no cap.
	MaxBlockSize int64 `yaml:"maxBlockSize"`
	// Workers sets the worker pool size. Zero means the CPU count.
	Workers int `yaml:"workers"`
	// LogLevel is a logrus level name. Defaults to "info".
	LogLevel string `yaml:"logLevel"`

	// Logger overrides the configured log level when set.
	Logger *logrus.Logger `yaml:"-"`
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("brightchain: read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("brightchain: parse config %s: %w", path, err)
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() (Config, error) {
	if c.Pool == "" {
		c.Pool = "primary"
	}
	if c.TupleSize == 0 {
		c.TupleSize = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Logger == nil {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("brightchain: invalid log level %q: %w", c.LogLevel, err)
		}
		c.Logger = logrus.New()
		c.Logger.SetLevel(level)
	}
	return c, nil
}
