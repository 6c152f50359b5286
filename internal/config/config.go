package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/application/pipeline"
	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Logging struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"logging"`

	// Auth maps tenant id to API key. Empty disables authentication.
	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	AI struct {
		Provider string       `yaml:"provider"`
		Model    string       `yaml:"model"`
		BaseURL  string       `yaml:"baseURL"`
		APIKey   string       `yaml:"apiKey"`
		Policy   genai.Policy `yaml:"policy"`
	} `yaml:"ai"`

	Pipeline pipeline.Options `yaml:"pipeline"`
	Workshop workshop.Config  `yaml:"workshop"`

	// LibraryPath overrides the embedded pattern tables.
	LibraryPath string `yaml:"libraryPath"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Providers accepted in ai.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Database drivers accepted in database.driver; empty disables storage.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Default is the configuration used for every key the file leaves out.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "info"
	cfg.RateLimit.RequestsPerSecond = 2
	cfg.RateLimit.Burst = 10
	cfg.AI.Provider = ProviderOpenAI
	cfg.AI.Policy = genai.DefaultPolicy()
	cfg.Pipeline = pipeline.Options{Bounds: textscan.DefaultBounds}
	cfg.Workshop = workshop.DefaultConfig()
	cfg.Database.SSLMode = "disable"
	cfg.Minio.BucketName = "essay-reports"
	return &cfg
}

// Load baca file config.yaml (optional), .env, lalu environment overrides.
// Secrets should come from the environment rather than the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.AI.BaseURL, "AI_BASE_URL")
	switch c.AI.Provider {
	case ProviderOpenAI:
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	case ProviderAnthropic:
		setString(&c.AI.APIKey, "ANTHROPIC_API_KEY")
	}
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", c.AI.Provider))
	}
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("ai.apiKey is required (set OPENAI_API_KEY or ANTHROPIC_API_KEY)"))
	}
	if c.AI.Policy.Timeout <= 0 {
		errs = append(errs, errors.New("ai.policy.timeout must be positive"))
	}
	if c.AI.Policy.MaxRetries < 0 {
		errs = append(errs, errors.New("ai.policy.maxRetries must not be negative"))
	}
	if err := c.Pipeline.Bounds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if r := c.Workshop.Refine; r.Enabled && (r.TargetScore <= 0 || r.TargetScore > 100) {
		errs = append(errs, fmt.Errorf("workshop.refine.targetScore %.1f out of range", r.TargetScore))
	}
	switch c.Database.Driver {
	case "", DriverMySQL, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.Driver != "" && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, errors.New("database.host and database.name are required when a driver is set"))
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucketName is required when minio.endpoint is set"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rateLimit values must not be negative"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.portOr(3306),
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.portOr(5432)),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if strings.EqualFold(c.Database.Driver, DriverPostgres) {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

func (c *Config) portOr(def int) int {
	if c.Database.Port > 0 {
		return c.Database.Port
	}
	return def
}
