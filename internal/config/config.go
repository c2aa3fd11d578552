// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SEHARVEST_API_KEY.
const EnvPrefix = "SEHARVEST"

// Unresolved-site policies for crawler.on_unresolved. The harvest package
// re-exports these.
const (
	OnUnresolvedSkip  = "skip"
	OnUnresolvedAbort = "abort"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	API       APIConfig       `mapstructure:"api"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OutputConfig controls where and how records are written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Source   string `mapstructure:"source"`
	Timezone string `mapstructure:"timezone"`
}

// APIConfig configures the Stack Exchange client.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Version           string        `mapstructure:"version"`
	Key               string        `mapstructure:"key"`
	UserAgents        []string      `mapstructure:"user_agents"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PageSize          int           `mapstructure:"page_size"`
	QuestionsFilter   string        `mapstructure:"questions_filter"`
	SitesFilter       string        `mapstructure:"sites_filter"`
}

// RetryConfig sets the backoff schedule and per-endpoint budgets.
type RetryConfig struct {
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	Step              time.Duration `mapstructure:"step"`
	SitesAttempts     int           `mapstructure:"sites_attempts"`
	QuestionsAttempts int           `mapstructure:"questions_attempts"`
}

// StorageConfig selects the upload target.
type StorageConfig struct {
	Provider string      `mapstructure:"provider"`
	Bucket   string      `mapstructure:"bucket"`
	Prefix   string      `mapstructure:"prefix"`
	S3       S3Config    `mapstructure:"s3"`
	Local    LocalConfig `mapstructure:"local"`
}

// S3Config holds S3 specifics.
type S3Config struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// LocalConfig holds the mirror directory for the local provider.
type LocalConfig struct {
	Dir string `mapstructure:"dir"`
}

// NotifyConfig holds Pub/Sub notification settings. Both fields empty
// disables notifications.
type NotifyConfig struct {
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// CrawlerConfig governs the orchestrator.
type CrawlerConfig struct {
	Workers      int    `mapstructure:"workers"`
	OnUnresolved string `mapstructure:"on_unresolved"`
	Upload       bool   `mapstructure:"upload"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelemetryConfig configures tracing. Spans are exported over OTLP when one
// of the endpoints is set and kept in-process otherwise.
type TelemetryConfig struct {
	ServiceName      string            `mapstructure:"service_name"`
	OTLPGrpcEndpoint string            `mapstructure:"otlp_grpc_endpoint"`
	OTLPHTTPEndpoint string            `mapstructure:"otlp_http_endpoint"`
	OTLPHeaders      map[string]string `mapstructure:"otlp_headers"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Verbose     bool `mapstructure:"verbose"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides resolve even when
// no file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.source", "stackexchange")
	v.SetDefault("output.timezone", "UTC")
	v.SetDefault("api.base_url", "https://api.stackexchange.com/")
	v.SetDefault("api.version", "2.2")
	v.SetDefault("api.key", "")
	v.SetDefault("api.user_agents", []string{})
	v.SetDefault("api.requests_per_second", 5.0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.questions_filter", "")
	v.SetDefault("api.sites_filter", "")
	v.SetDefault("retry.base_delay", 3*time.Second)
	v.SetDefault("retry.step", 5*time.Second)
	v.SetDefault("retry.sites_attempts", 5)
	v.SetDefault("retry.questions_attempts", 10)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.local.dir", "")
	v.SetDefault("notify.pubsub_project", "")
	v.SetDefault("notify.pubsub_topic", "")
	v.SetDefault("crawler.workers", 1)
	v.SetDefault("crawler.on_unresolved", OnUnresolvedSkip)
	v.SetDefault("crawler.upload", true)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("telemetry.service_name", "stackexchange-harvester")
	v.SetDefault("telemetry.otlp_grpc_endpoint", "")
	v.SetDefault("telemetry.otlp_http_endpoint", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.verbose", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("output.timezone: %w", err)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must be >= 0")
	}
	if c.API.Burst < 0 {
		return fmt.Errorf("api.burst must be >= 0")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.PageSize < 0 || c.API.PageSize > 100 {
		return fmt.Errorf("api.page_size must be between 0 and 100")
	}
	if c.Retry.SitesAttempts <= 0 {
		return fmt.Errorf("retry.sites_attempts must be > 0")
	}
	if c.Retry.QuestionsAttempts <= 0 {
		return fmt.Errorf("retry.questions_attempts must be > 0")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.Step <= 0 {
		return fmt.Errorf("retry.base_delay and retry.step must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	switch c.Crawler.OnUnresolved {
	case OnUnresolvedSkip, OnUnresolvedAbort:
	default:
		return fmt.Errorf("crawler.on_unresolved must be %q or %q", OnUnresolvedSkip, OnUnresolvedAbort)
	}
	switch strings.ToLower(c.Storage.Provider) {
	case "", "none":
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for provider %s", c.Storage.Provider)
		}
	case "local":
		if c.Storage.Local.Dir == "" {
			return fmt.Errorf("storage.local.dir must be set for provider local")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	if (c.Notify.PubSubProject == "") != (c.Notify.PubSubTopic == "") {
		return fmt.Errorf("notify.pubsub_project and notify.pubsub_topic must be set together")
	}
	if c.Telemetry.OTLPGrpcEndpoint != "" && c.Telemetry.OTLPHTTPEndpoint != "" {
		return fmt.Errorf("telemetry: set only one of otlp_grpc_endpoint and otlp_http_endpoint")
	}
	return nil
}

// Location returns the zone record dates are rendered in.
func (c Config) Location() (*time.Location, error) {
	if c.Output.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	return loc, nil
}

// APIBaseURL joins the base URL and version, e.g.
// https://api.stackexchange.com/2.2/.
func (c Config) APIBaseURL() string {
	base := strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Version == "" {
		return base + "/"
	}
	return base + "/" + strings.Trim(c.API.Version, "/") + "/"
}

// NotifyEnabled reports whether Pub/Sub notifications are configured.
func (c Config) NotifyEnabled() bool {
	return c.Notify.PubSubProject != "" && c.Notify.PubSubTopic != ""
}
