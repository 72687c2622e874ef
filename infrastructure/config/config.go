// Package config loads the service configuration: struct defaults, an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"contact-service/pkg/observability"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"serverAddress" default:":8080"`
	Environment     string        `yaml:"environment" default:"development"`
	AppName         string        `yaml:"appName" default:"contact-service"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"15s"`
	CORSOrigins     []string      `yaml:"corsOrigins" default:"[\"http://localhost:3000\"]"`

	// Logging
	LogLevel string `yaml:"logLevel" default:"info"`

	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and connects the contact store.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"memory"`
	DSN    string `yaml:"dsn"`

	// SQL pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns" default:"50"`
	MaxIdleConns    int           `yaml:"maxIdleConns" default:"10"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" default:"1h"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout" default:"30s"`

	// DynamoDB settings
	DynamoDBTable    string `yaml:"dynamodbTable" default:"contacts"`
	DynamoDBEndpoint string `yaml:"dynamodbEndpoint"`
	AWSRegion        string `yaml:"awsRegion" default:"us-west-2"`
}

// AuthConfig enables bearer token checks when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// TelemetryConfig is the file and environment shape of the tracing pipeline.
type TelemetryConfig struct {
	ExcludeURLs  []string `yaml:"excludeUrls" default:"[\"_framework\",\"swagger\"]"`
	ExcludeHosts []string `yaml:"excludeHosts" default:"[\"_framework\",\"visualstudio\",\"newrelic\"]"`
	Sampler      string   `yaml:"sampler" default:"always"`
	SampleRatio  float64  `yaml:"sampleRatio" default:"1"`
	Console      bool     `yaml:"console" default:"true"`

	MaxQueueSize       int           `yaml:"maxQueueSize" default:"2048"`
	MaxExportBatchSize int           `yaml:"maxExportBatchSize" default:"512"`
	ScheduledDelay     time.Duration `yaml:"scheduledDelay" default:"5s"`
	ExportTimeout      time.Duration `yaml:"exportTimeout" default:"30s"`
	DropPolicy         string        `yaml:"dropPolicy" default:"drop_newest"`

	// Remote sink, enabled only when all three are set
	TraceURL string `yaml:"traceUrl"`
	APIKey   string `yaml:"apiKey"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol" default:"grpc"`
	Insecure bool   `yaml:"insecure"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file and default values with environment variables
func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AppName = getEnv("APP_NAME", c.AppName)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("DATABASE_URL", c.Store.DSN)
	c.Store.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.Store.DynamoDBTable))
	c.Store.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.Store.DynamoDBEndpoint)
	c.Store.AWSRegion = getEnv("AWS_REGION", c.Store.AWSRegion)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("JWT_ISSUER", c.Auth.JWTIssuer)

	t := &c.Telemetry
	t.Sampler = getEnv("TELEMETRY_SAMPLER", t.Sampler)
	t.SampleRatio = getEnvFloat("TELEMETRY_SAMPLE_RATIO", t.SampleRatio)
	t.Console = getEnvBool("TELEMETRY_CONSOLE", t.Console)
	t.DropPolicy = getEnv("TELEMETRY_DROP_POLICY", t.DropPolicy)
	t.TraceURL = getEnv("NEWRELIC_TRACE_URL", t.TraceURL)
	t.APIKey = getEnv("NEWRELIC_API_KEY", t.APIKey)
	t.Endpoint = getEnv("NEWRELIC_ENDPOINT", t.Endpoint)
	t.Protocol = getEnv("NEWRELIC_PROTOCOL", t.Protocol)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s store", c.Store.Driver))
		}
	case DriverDynamoDB:
		if c.Store.DynamoDBTable == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE is required for the dynamodb store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout cannot be negative"))
	}
	if err := c.TelemetryConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TelemetryConfig converts the telemetry settings for the tracing pipeline.
func (c *Config) TelemetryConfig() observability.Config {
	t := c.Telemetry
	return observability.Config{
		AppName:      c.AppName,
		Environment:  c.Environment,
		ExcludeURLs:  t.ExcludeURLs,
		ExcludeHosts: t.ExcludeHosts,
		Sampler:      t.Sampler,
		SampleRatio:  t.SampleRatio,
		Console:      t.Console,
		Batch: observability.BatchConfig{
			MaxQueueSize:       t.MaxQueueSize,
			MaxExportBatchSize: t.MaxExportBatchSize,
			ScheduledDelay:     t.ScheduledDelay,
			ExportTimeout:      t.ExportTimeout,
			DropPolicy:         observability.DropPolicy(t.DropPolicy),
		},
		Remote: observability.RemoteConfig{
			TraceURL: t.TraceURL,
			APIKey:   t.APIKey,
			Endpoint: t.Endpoint,
			Protocol: t.Protocol,
			Insecure: t.Insecure,
		},
	}
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
