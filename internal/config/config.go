// Package config loads search settings from flags, KEYFINDER_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/pkg/keyfinder"
)

// EnvPrefix prefixes environment overrides, e.g. KEYFINDER_BATCH_SIZE.
const EnvPrefix = "KEYFINDER"

// Search modes.
const (
	ModeRange = "range"
	ModeList  = "list"
)

// ErrInvalidConfig is returned when a setting is missing or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting of a search run.
type Config struct {
	Mode       string `mapstructure:"mode"`
	Start      string `mapstructure:"start"`
	End        string `mapstructure:"end"`
	Stride     string `mapstructure:"stride"`
	Iterations uint64 `mapstructure:"iterations"`

	BatchSize      int     `mapstructure:"batch-size"`
	ResultCapacity int     `mapstructure:"result-capacity"`
	MemoryFraction float64 `mapstructure:"memory-fraction"`
	DeviceMemory   string  `mapstructure:"device-memory"`
	Workers        int     `mapstructure:"workers"`
	Encoding       string  `mapstructure:"compression"`

	Targets string `mapstructure:"targets"`
	Keys    string `mapstructure:"keys"`
	Output  string `mapstructure:"output"`

	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

func defaults() map[string]any {
	fc := keyfinder.DefaultConfig()
	return map[string]any{
		"mode":            ModeRange,
		"start":           "1",
		"end":             "",
		"stride":          "1",
		"iterations":      fc.Iterations,
		"batch-size":      fc.BatchSize,
		"result-capacity": fc.ResultCapacity,
		"memory-fraction": fc.MemoryFraction,
		"device-memory":   "",
		"workers":         0,
		"compression":     fc.Compression.String(),
		"targets":         "",
		"keys":            "",
		"output":          "",
		"log-level":       "info",
		"log-format":      "console",
		"metrics-addr":    "",
	}
}

// AddFlags registers a flag for every setting on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("mode", d["mode"].(string), "search mode: range or list")
	fs.String("start", d["start"].(string), "first key of a range search (hex)")
	fs.String("end", d["end"].(string), "last key of a range search, inclusive (hex, empty = unbounded)")
	fs.String("stride", d["stride"].(string), "distance between consecutive keys (hex)")
	fs.Uint64("iterations", d["iterations"].(uint64), "maximum number of iterations (0 = unlimited)")
	fs.Int("batch-size", d["batch-size"].(int), "keys stepped in parallel per iteration")
	fs.Int("result-capacity", d["result-capacity"].(int), "matches one check can hold")
	fs.Float64("memory-fraction", d["memory-fraction"].(float64), "share of device memory a batch may use")
	fs.String("device-memory", d["device-memory"].(string), "memory reported by the CPU device, e.g. 2GiB")
	fs.Int("workers", d["workers"].(int), "CPU device workers (0 = GOMAXPROCS)")
	fs.String("compression", d["compression"].(string), "public key encodings: compressed, uncompressed or both")
	fs.String("targets", d["targets"].(string), "target file (addresses or hex HASH160, .bin for binary records)")
	fs.String("keys", d["keys"].(string), "key list file for list mode")
	fs.StringP("output", "o", d["output"].(string), "result file (default stdout)")
	fs.String("log-level", d["log-level"].(string), "log level: debug, info, warn or error")
	fs.String("log-format", d["log-format"].(string), "log format: console or json")
	fs.String("metrics-addr", d["metrics-addr"].(string), "serve prometheus metrics on this address")
}

// Load resolves the configuration. Precedence is flags set on the command
// line, then environment, then the config file, then defaults.
//
// Args:
//   - fs: Flags registered with AddFlags, or nil
//   - file: Optional YAML, JSON or TOML config file
//
// Returns:
//   - The validated configuration
func Load(fs *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the settings that can be checked without reading files.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRange:
	case ModeList:
		if c.Keys == "" {
			return fmt.Errorf("%w: list mode needs a key list file", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Targets == "" {
		return fmt.Errorf("%w: no target file", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json", "":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.DeviceMemoryBytes(); err != nil {
		return err
	}
	fc, err := c.FinderConfig()
	if err != nil {
		return err
	}
	if err := fc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Compression returns the configured public key encodings.
func (c *Config) Compression() (digest.Compression, error) {
	mode, err := digest.ParseCompression(c.Encoding)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return mode, nil
}

// DeviceMemoryBytes parses the device memory size. Zero means the device
// default.
func (c *Config) DeviceMemoryBytes() (uint64, error) {
	if c.DeviceMemory == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.DeviceMemory)
	if err != nil {
		return 0, fmt.Errorf("%w: device memory %q: %w", ErrInvalidConfig, c.DeviceMemory, err)
	}
	return n, nil
}

// FinderConfig returns the key finder settings.
func (c *Config) FinderConfig() (keyfinder.Config, error) {
	mode, err := c.Compression()
	if err != nil {
		return keyfinder.Config{}, err
	}
	return keyfinder.Config{
		BatchSize:      c.BatchSize,
		ResultCapacity: c.ResultCapacity,
		MemoryFraction: c.MemoryFraction,
		Compression:    mode,
		Iterations:     c.Iterations,
	}, nil
}

// CPUOptions returns the CPU device settings.
func (c *Config) CPUOptions() (keyfinder.CPUOptions, error) {
	memory, err := c.DeviceMemoryBytes()
	if err != nil {
		return keyfinder.CPUOptions{}, err
	}
	return keyfinder.CPUOptions{Workers: c.Workers, Memory: memory}, nil
}

// Origin builds the key origin: a SequentialRange in range mode, or the
// parsed key list in list mode along with the lines it skipped.
func (c *Config) Origin() (keyfinder.Origin, []keyfinder.Warning, error) {
	if c.Mode == ModeList {
		list, warnings, err := keyfinder.LoadKeyList(c.Keys)
		if err != nil {
			return nil, warnings, err
		}
		return list, warnings, nil
	}

	start, err := keyfinder.ParseKey(c.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: start: %w", ErrInvalidConfig, err)
	}
	stride, err := keyfinder.ParseScalar(c.Stride)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: stride: %w", ErrInvalidConfig, err)
	}
	rng := keyfinder.SequentialRange{Start: start, Stride: stride}
	if c.End != "" {
		end, err := keyfinder.ParseKey(c.End)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: end: %w", ErrInvalidConfig, err)
		}
		rng.End = &end
	}
	return rng, nil, nil
}
