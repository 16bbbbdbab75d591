// Package config loads analysis settings from YAML, .env files and ARCHMAP_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Parsing struct {
	MaxFileSizeMB   int      `yaml:"max_file_size_mb"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	ParallelWorkers int      `yaml:"parallel_workers"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type Analysis struct {
	MaxNodes       int      `yaml:"max_nodes"`
	IncludeModules []string `yaml:"include_modules"`
	ExcludeModules []string `yaml:"exclude_modules"`
	EntryPoint     string   `yaml:"entry_point"`
	// MaxDepth bounds reachability from EntryPoint; zero means unbounded.
	MaxDepth       int  `yaml:"max_depth"`
	IncludePrivate bool `yaml:"include_private"`
}

type Cycles struct {
	Detect         bool `yaml:"detect"`
	MaxNodes       int  `yaml:"max_nodes"`
	MaxCycles      int  `yaml:"max_cycles"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Parsing  Parsing  `yaml:"parsing"`
	Analysis Analysis `yaml:"analysis"`
	Cycles   Cycles   `yaml:"cycles"`
	Logging  Logging  `yaml:"logging"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Parsing: Parsing{
			MaxFileSizeMB:   10,
			TimeoutSeconds:  30,
			ParallelWorkers: 4,
		},
		Analysis: Analysis{
			MaxNodes:       150,
			IncludePrivate: true,
		},
		Cycles: Cycles{
			Detect:         true,
			MaxNodes:       500,
			MaxCycles:      1000,
			TimeoutSeconds: 5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(file, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"ARCHMAP_MAX_FILE_SIZE_MB":      &cfg.Parsing.MaxFileSizeMB,
		"ARCHMAP_TIMEOUT_SECONDS":       &cfg.Parsing.TimeoutSeconds,
		"ARCHMAP_PARALLEL_WORKERS":      &cfg.Parsing.ParallelWorkers,
		"ARCHMAP_MAX_NODES":             &cfg.Analysis.MaxNodes,
		"ARCHMAP_MAX_DEPTH":             &cfg.Analysis.MaxDepth,
		"ARCHMAP_CYCLE_MAX_NODES":       &cfg.Cycles.MaxNodes,
		"ARCHMAP_CYCLE_MAX_CYCLES":      &cfg.Cycles.MaxCycles,
		"ARCHMAP_CYCLE_TIMEOUT_SECONDS": &cfg.Cycles.TimeoutSeconds,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"ARCHMAP_INCLUDE_PRIVATE": &cfg.Analysis.IncludePrivate,
		"ARCHMAP_DETECT_CYCLES":   &cfg.Cycles.Detect,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
		}
		*dst = b
	}

	if v := os.Getenv("ARCHMAP_ENTRY_POINT"); v != "" {
		cfg.Analysis.EntryPoint = v
	}
	if v := os.Getenv("ARCHMAP_INCLUDE_MODULES"); v != "" {
		cfg.Analysis.IncludeModules = splitList(v)
	}
	if v := os.Getenv("ARCHMAP_EXCLUDE_MODULES"); v != "" {
		cfg.Analysis.ExcludeModules = splitList(v)
	}
	if v := os.Getenv("ARCHMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARCHMAP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.Parsing.MaxFileSizeMB <= 0 {
		problems = append(problems, "parsing.max_file_size_mb must be positive")
	}
	if c.Parsing.TimeoutSeconds <= 0 {
		problems = append(problems, "parsing.timeout_seconds must be positive")
	}
	if c.Parsing.ParallelWorkers <= 0 {
		problems = append(problems, "parsing.parallel_workers must be positive")
	}
	if c.Analysis.MaxNodes < 0 {
		problems = append(problems, "analysis.max_nodes must not be negative")
	}
	if c.Analysis.MaxDepth < 0 {
		problems = append(problems, "analysis.max_depth must not be negative")
	}
	if c.Cycles.MaxNodes < 0 || c.Cycles.MaxCycles < 0 || c.Cycles.TimeoutSeconds < 0 {
		problems = append(problems, "cycles limits must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not text or json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (p Parsing) MaxFileSize() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

func (p Parsing) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (c Cycles) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
