// Package config loads gafscrape settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstream locations of the Gene Ontology and its annotation files.
const (
	DefaultGOURL          = "http://geneontology.org/ontology/go-basic.obo"
	DefaultGAFURLPrefix   = "http://geneontology.org/gene-associations/"
	DefaultMetadataSuffix = "go_annotation_metadata.all.js"
)

// DefaultExampleTerms are the GO terms listed as example queries per organism.
var DefaultExampleTerms = []string{
	"GO:0006298", // mismatch repair
	"GO:0000027", // ribosomal large subunit assembly
}

// Config holds all configuration values.
type Config struct {
	// Sources
	GOURL        string `yaml:"go_url"`
	GAFURLPrefix string `yaml:"gaf_url_prefix"`
	MetadataURL  string `yaml:"metadata_url"`

	// Filesystem layout
	DeployDir   string `yaml:"deploy_dir"`
	DownloadDir string `yaml:"download_dir"`

	// Pipeline
	Concurrency   int           `yaml:"concurrency"`
	RateLimit     float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	ExampleTerms  []string      `yaml:"example_terms"`
	ExtraExcludes []string      `yaml:"exclude"` // additional resource ID prefixes to skip

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// fileConfig mirrors Config for YAML decoding where types differ.
type fileConfig struct {
	Config   `yaml:",inline"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from environment variables.
func Load() Config {
	gafPrefix := getEnv("GAFSCRAPE_GAF_URL_PREFIX", DefaultGAFURLPrefix)
	return Config{
		GOURL:        getEnv("GAFSCRAPE_GO_URL", DefaultGOURL),
		GAFURLPrefix: gafPrefix,
		MetadataURL:  getEnv("GAFSCRAPE_METADATA_URL", gafPrefix+DefaultMetadataSuffix),

		DeployDir:   getEnv("GAFSCRAPE_DEPLOY_DIR", "web"),
		DownloadDir: getEnv("GAFSCRAPE_DOWNLOAD_DIR", "download"),

		Concurrency:  getEnvInt("GAFSCRAPE_CONCURRENCY", 4),
		RateLimit:    getEnvFloat("GAFSCRAPE_RATE_LIMIT", 0),
		HTTPTimeout:  getEnvDuration("GAFSCRAPE_HTTP_TIMEOUT", 10*time.Minute),
		ExampleTerms: append([]string(nil), DefaultExampleTerms...),

		LogFile:  getEnv("GAFSCRAPE_LOG_FILE", ""),
		LogLevel: ParseLogLevel(getEnv("GAFSCRAPE_LOG_LEVEL", "INFO")),
	}
}

// LoadFile overlays settings from a YAML file onto cfg. Fields absent from
// the file keep their current values.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Config: cfg}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := fc.Config
	if fc.LogLevel != "" {
		out.LogLevel = ParseLogLevel(fc.LogLevel)
	}
	// A new GAF prefix without an explicit metadata URL moves the metadata URL too
	if out.GAFURLPrefix != cfg.GAFURLPrefix && out.MetadataURL == cfg.MetadataURL {
		out.MetadataURL = out.GAFURLPrefix + DefaultMetadataSuffix
	}
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

// ParseLogLevel maps DEBUG/INFO/WARN/ERROR to a slog level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
