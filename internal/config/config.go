// Package config loads hydrator configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete hydrator configuration.
type Config struct {
	// Bucket receives the normalized text objects.
	Bucket string `yaml:"bucket" validate:"required,min=3,max=63"`
	// Class is the document index collection records are created in.
	Class string `yaml:"class" validate:"required"`
	// Mode is the default batch mode: sequential or concurrent.
	Mode        string `yaml:"mode" validate:"oneof=sequential concurrent"`
	Concurrency int    `yaml:"concurrency" validate:"min=1,max=256"`
	// Readability narrows HTML to its main article before partitioning.
	Readability bool `yaml:"readability"`

	Log    LogConfig    `yaml:"log"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Store  StoreConfig  `yaml:"store"`
	Index  IndexConfig  `yaml:"index"`
	Notify NotifyConfig `yaml:"notify"`
	Server ServerConfig `yaml:"server"`

	AWSRegion string `yaml:"aws_region"`
	// SecretPrefix, when set, names the Secrets Manager prefix credentials are
	// read from (e.g. "/hydrator/").
	SecretPrefix string `yaml:"secret_prefix"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent"`
	// RequestsPerSecond limits outgoing requests; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=s3 memory"`
	// Endpoint is an S3-compatible endpoint such as http://localhost:9000.
	// Empty means AWS S3.
	Endpoint     string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// IndexConfig configures the document index.
type IndexConfig struct {
	Backend  string         `yaml:"backend" validate:"oneof=weaviate dynamodb sqlite memory"`
	Weaviate WeaviateConfig `yaml:"weaviate"`
	// Table is the DynamoDB table name.
	Table string `yaml:"table" validate:"required_if=Backend dynamodb"`
	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required_if=Backend sqlite"`
}

// WeaviateConfig locates a Weaviate instance.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme" validate:"oneof=http https"`
	APIKey string `yaml:"api_key"`
}

// NotifyConfig configures NATS notifications. An empty URL disables them.
type NotifyConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix" validate:"required_with=NATSURL"`
}

// ServerConfig configures the MCP service.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
	// MaxBatches bounds concurrently running async batches.
	MaxBatches int `yaml:"max_batches" validate:"min=1"`
	// APIKey, when set, is required as a bearer token on /mcp.
	APIKey string `yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bucket:      "cda-datasets",
		Class:       "Document",
		Mode:        "concurrent",
		Concurrency: 8,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:      "s3",
			UsePathStyle: true,
		},
		Index: IndexConfig{
			Backend: "weaviate",
			Weaviate: WeaviateConfig{
				Host:   "localhost:8080",
				Scheme: "http",
			},
			Path: "hydrator.db",
		},
		Notify: NotifyConfig{
			SubjectPrefix: "hydrator",
		},
		Server: ServerConfig{
			Port:       8000,
			MaxBatches: 5,
		},
		AWSRegion: "us-east-1",
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	c.Bucket = envOr("HYDRATOR_BUCKET", c.Bucket)
	c.Class = envOr("HYDRATOR_CLASS", c.Class)
	c.Mode = envOr("HYDRATOR_MODE", c.Mode)
	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("LOG_FORMAT", c.Log.Format)
	c.Fetch.UserAgent = envOr("FETCH_USER_AGENT", c.Fetch.UserAgent)

	c.Store.Backend = envOr("STORE_BACKEND", c.Store.Backend)
	c.Store.Endpoint = envOr("S3_ENDPOINT", c.Store.Endpoint)
	c.Store.AccessKey = envOr("S3_ACCESS_KEY", c.Store.AccessKey)
	c.Store.SecretKey = envOr("S3_SECRET_KEY", c.Store.SecretKey)

	c.Index.Backend = envOr("INDEX_BACKEND", c.Index.Backend)
	c.Index.Weaviate.Host = envOr("WEAVIATE_HOST", c.Index.Weaviate.Host)
	c.Index.Weaviate.Scheme = envOr("WEAVIATE_SCHEME", c.Index.Weaviate.Scheme)
	c.Index.Weaviate.APIKey = envOr("WEAVIATE_API_KEY", c.Index.Weaviate.APIKey)
	c.Index.Table = envOr("DYNAMODB_TABLE", c.Index.Table)
	c.Index.Path = envOr("SQLITE_PATH", c.Index.Path)

	c.Notify.NATSURL = envOr("NATS_URL", c.Notify.NATSURL)
	c.Notify.SubjectPrefix = envOr("NATS_SUBJECT_PREFIX", c.Notify.SubjectPrefix)

	c.AWSRegion = envOr("AWS_REGION", c.AWSRegion)
	c.SecretPrefix = envOr("SECRET_PREFIX", c.SecretPrefix)
	c.Server.APIKey = envOr("HYDRATOR_API_KEY", c.Server.APIKey)

	var errs []error
	errs = append(errs,
		envInt("HYDRATOR_CONCURRENCY", &c.Concurrency),
		envInt("FETCH_BURST", &c.Fetch.Burst),
		envInt("PORT", &c.Server.Port),
		envInt("MAX_BATCHES", &c.Server.MaxBatches),
		envFloat("FETCH_RPS", &c.Fetch.RequestsPerSecond),
		envDuration("FETCH_TIMEOUT", &c.Fetch.Timeout),
		envBool("HYDRATOR_READABILITY", &c.Readability),
		envBool("S3_USE_PATH_STYLE", &c.Store.UsePathStyle),
	)
	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
