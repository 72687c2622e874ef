package observability

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DropPolicy decides which span is lost when the batch buffer is full.
type DropPolicy string

const (
	// DropNewest rejects the span being enqueued.
	DropNewest DropPolicy = "drop_newest"
	// DropOldest evicts the head of the buffer to make room.
	DropOldest DropPolicy = "drop_oldest"
)

// Sampler names accepted in Config.Sampler.
const (
	SamplerAlways = "always"
	SamplerRatio  = "ratio"
	SamplerNever  = "never"
)

// Remote sink protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config describes the whole telemetry pipeline.
type Config struct {
	// AppName and Environment form the service identity "<app>.<env>".
	AppName     string
	Environment string

	// ExcludeURLs drops inbound spans whose full URL contains any entry.
	ExcludeURLs []string
	// ExcludeHosts drops outbound spans whose destination host contains any entry.
	ExcludeHosts []string

	Sampler     string
	SampleRatio float64

	// Console enables the stdout sink.
	Console bool

	Batch  BatchConfig
	Remote RemoteConfig
}

// BatchConfig tunes the batch processor.
type BatchConfig struct {
	MaxQueueSize       int
	MaxExportBatchSize int
	ScheduledDelay     time.Duration
	ExportTimeout      time.Duration
	DropPolicy         DropPolicy
}

// RemoteConfig is the OTLP sink connection. The sink is enabled only when
// TraceURL, APIKey and Endpoint are all set.
type RemoteConfig struct {
	TraceURL string
	APIKey   string
	Endpoint string
	Protocol string
	Insecure bool
}

// Enabled reports whether every connection setting is present.
func (r RemoteConfig) Enabled() bool {
	return strings.TrimSpace(r.TraceURL) != "" &&
		strings.TrimSpace(r.APIKey) != "" &&
		strings.TrimSpace(r.Endpoint) != ""
}

// Hosts returns the hosts the remote sink talks to.
func (r RemoteConfig) Hosts() []string {
	var hosts []string
	for _, raw := range []string{r.TraceURL, r.Endpoint} {
		if host := hostOf(raw); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// DefaultBatchConfig returns the default buffer and flush settings.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxQueueSize:       2048,
		MaxExportBatchSize: 512,
		ScheduledDelay:     5000 * time.Millisecond,
		ExportTimeout:      30000 * time.Millisecond,
		DropPolicy:         DropNewest,
	}
}

// DefaultConfig returns a console-only pipeline configuration.
func DefaultConfig() Config {
	return Config{
		AppName:      "contact-service",
		Environment:  "development",
		ExcludeURLs:  []string{"_framework", "swagger"},
		ExcludeHosts: []string{"_framework", "visualstudio", "newrelic"},
		Sampler:      SamplerAlways,
		SampleRatio:  1.0,
		Console:      true,
		Batch:        DefaultBatchConfig(),
		Remote:       RemoteConfig{Protocol: ProtocolGRPC},
	}
}

// ServiceName is the dotted service identity.
func (c Config) ServiceName() string {
	return c.AppName + "." + c.Environment
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.AppName == "" || c.Environment == "" {
		return fmt.Errorf("telemetry app name and environment are required")
	}
	if c.Batch.MaxQueueSize <= 0 {
		return fmt.Errorf("telemetry max queue size must be positive")
	}
	if c.Batch.MaxExportBatchSize <= 0 || c.Batch.MaxExportBatchSize > c.Batch.MaxQueueSize {
		return fmt.Errorf("telemetry max export batch size must be between 1 and %d", c.Batch.MaxQueueSize)
	}
	if c.Batch.ScheduledDelay <= 0 || c.Batch.ExportTimeout <= 0 {
		return fmt.Errorf("telemetry scheduled delay and export timeout must be positive")
	}
	switch c.Batch.DropPolicy {
	case DropNewest, DropOldest:
	default:
		return fmt.Errorf("unknown drop policy %q", c.Batch.DropPolicy)
	}
	switch c.Sampler {
	case SamplerAlways, SamplerNever:
	case SamplerRatio:
		if c.SampleRatio < 0 || c.SampleRatio > 1 {
			return fmt.Errorf("sample ratio must be between 0 and 1")
		}
	default:
		return fmt.Errorf("unknown sampler %q", c.Sampler)
	}
	if c.Remote.Enabled() {
		switch c.Remote.Protocol {
		case ProtocolGRPC, ProtocolHTTP:
		default:
			return fmt.Errorf("unknown remote protocol %q", c.Remote.Protocol)
		}
	}
	return nil
}

// hostOf extracts the host from a URL or a bare host:port.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
