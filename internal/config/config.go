package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all runtime settings of attendx.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Detector   DetectorConfig   `yaml:"detector"`
	Matching   MatchingConfig   `yaml:"matching"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Web        WebConfig        `yaml:"web"`
}

// EmbeddingConfig points at the face embedding service.
type EmbeddingConfig struct {
	URL   string `yaml:"url"`   // InsightFace-compatible server, e.g. http://localhost:8000
	Model string `yaml:"model"` // model pack name (buffalo_l, antelopev2)
	Dim   int    `yaml:"dim"`   // embedding dimension produced by the model
}

// DetectorConfig controls face detection.
type DetectorConfig struct {
	Backend      string  `yaml:"backend"`       // "http" or "dlib"
	DetSize      int     `yaml:"det_size"`      // detector input size in pixels (square)
	DetThreshold float64 `yaml:"det_threshold"` // minimum detection score
	Scale        float64 `yaml:"scale"`         // upscale factor applied before detection
	ModelsDir    string  `yaml:"models_dir"`    // dlib model files, only for the dlib backend
}

type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type AttendanceConfig struct {
	Dir      string        `yaml:"dir"`
	Cooldown time.Duration `yaml:"cooldown"`
	Preload  bool          `yaml:"preload"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"` // PostgreSQL connection URL, empty = file store
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envDuration accepts Go durations ("90m") or plain seconds ("3600").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the optional YAML
// file named by ATTENDX_CONFIG and finally the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("ATTENDX_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted env
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Model = envString("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dim = envInt("EMBEDDING_DIM", c.Embedding.Dim)

	c.Detector.Backend = envString("DETECTOR_BACKEND", c.Detector.Backend)
	c.Detector.DetSize = envInt("DETECT_SIZE", c.Detector.DetSize)
	c.Detector.DetThreshold = envFloat("DETECT_THRESHOLD", c.Detector.DetThreshold)
	c.Detector.Scale = envFloat("DETECT_SCALE", c.Detector.Scale)
	c.Detector.ModelsDir = envString("DLIB_MODELS_DIR", c.Detector.ModelsDir)

	c.Matching.Threshold = envFloat("MATCH_THRESHOLD", c.Matching.Threshold)

	c.Attendance.Dir = envString("ATTENDANCE_DIR", c.Attendance.Dir)
	c.Attendance.Cooldown = envDuration("ATTENDANCE_COOLDOWN", c.Attendance.Cooldown)
	c.Attendance.Preload = envBool("ATTENDANCE_PRELOAD", c.Attendance.Preload)

	c.Store.Path = envString("EMBEDDINGS_PATH", c.Store.Path)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	c.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", c.Web.AllowedOrigins)
}

// Validate rejects settings the pipeline cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.Threshold < -1 || c.Matching.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matching threshold %.2f out of range [-1, 1]", c.Matching.Threshold))
	}
	if c.Detector.Scale <= 0 {
		errs = append(errs, errors.New("detector scale must be positive"))
	}
	switch c.Detector.Backend {
	case "http", "dlib":
	default:
		errs = append(errs, fmt.Errorf("unknown detector backend %q", c.Detector.Backend))
	}
	if c.Attendance.Cooldown < 0 {
		errs = append(errs, errors.New("attendance cooldown must not be negative"))
	}
	if c.Attendance.Dir == "" {
		errs = append(errs, errors.New("attendance directory is required"))
	}
	return errors.Join(errs...)
}

// UsesDatabase reports whether embeddings live in PostgreSQL instead of a file.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}
