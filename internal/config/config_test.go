package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Dir != "output" || cfg.Output.Source != "stackexchange" {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Retry.BaseDelay != 3*time.Second || cfg.Retry.Step != 5*time.Second {
		t.Fatalf("unexpected retry schedule: %+v", cfg.Retry)
	}
	if cfg.Retry.SitesAttempts != 5 || cfg.Retry.QuestionsAttempts != 10 {
		t.Fatalf("unexpected retry budgets: %+v", cfg.Retry)
	}
	if cfg.Crawler.OnUnresolved != OnUnresolvedSkip || !cfg.Crawler.Upload || cfg.Crawler.Workers != 1 {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if got := cfg.APIBaseURL(); got != "https://api.stackexchange.com/2.2/" {
		t.Fatalf("unexpected API base url %q", got)
	}
	if cfg.NotifyEnabled() {
		t.Fatal("expected notifications disabled by default")
	}
	if cfg.Telemetry.ServiceName != "stackexchange-harvester" {
		t.Fatalf("unexpected service name %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
output:
  dir: /data/se
  timezone: Europe/Berlin
api:
  version: "2.3"
  key: abc
  user_agents: ["agent-a", "agent-b"]
  requests_per_second: 2.5
  timeout: 45s
  page_size: 50
retry:
  base_delay: 1s
  step: 2s
  questions_attempts: 4
storage:
  provider: s3
  bucket: harvest
  prefix: stackexchange
  s3:
    region: us-west-2
notify:
  pubsub_project: proj
  pubsub_topic: records
crawler:
  workers: 4
  on_unresolved: abort
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Dir != "/data/se" {
		t.Fatalf("expected output dir override, got %q", cfg.Output.Dir)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %v (%v)", loc, err)
	}
	if cfg.APIBaseURL() != "https://api.stackexchange.com/2.3/" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL())
	}
	if len(cfg.API.UserAgents) != 2 || cfg.API.Timeout != 45*time.Second || cfg.API.RequestsPerSecond != 2.5 {
		t.Fatalf("expected api overrides to apply: %+v", cfg.API)
	}
	if cfg.Retry.BaseDelay != time.Second || cfg.Retry.QuestionsAttempts != 4 || cfg.Retry.SitesAttempts != 5 {
		t.Fatalf("expected retry overrides to apply: %+v", cfg.Retry)
	}
	if cfg.Storage.Provider != "s3" || cfg.Storage.S3.Region != "us-west-2" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if !cfg.NotifyEnabled() || cfg.Crawler.Workers != 4 || cfg.Crawler.OnUnresolved != OnUnresolvedAbort {
		t.Fatalf("expected crawler/notify overrides to apply")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SEHARVEST_API_KEY", "from-env")
	t.Setenv("SEHARVEST_CRAWLER_WORKERS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Key != "from-env" || cfg.Crawler.Workers != 3 {
		t.Fatalf("expected env overrides, got key=%q workers=%d", cfg.API.Key, cfg.Crawler.Workers)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "missing output dir", mutate: func(c *Config) { c.Output.Dir = "" }, want: "output.dir"},
		{name: "bad timezone", mutate: func(c *Config) { c.Output.Timezone = "Mars/Olympus" }, want: "output.timezone"},
		{name: "negative rate", mutate: func(c *Config) { c.API.RequestsPerSecond = -1 }, want: "api.requests_per_second"},
		{name: "page size too large", mutate: func(c *Config) { c.API.PageSize = 101 }, want: "api.page_size"},
		{name: "zero questions attempts", mutate: func(c *Config) { c.Retry.QuestionsAttempts = 0 }, want: "retry.questions_attempts"},
		{name: "zero base delay", mutate: func(c *Config) { c.Retry.BaseDelay = 0 }, want: "retry.base_delay"},
		{name: "zero step", mutate: func(c *Config) { c.Retry.Step = 0 }, want: "retry.base_delay and retry.step"},
		{name: "zero workers", mutate: func(c *Config) { c.Crawler.Workers = 0 }, want: "crawler.workers"},
		{name: "unknown policy", mutate: func(c *Config) { c.Crawler.OnUnresolved = "ignore" }, want: "crawler.on_unresolved"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Provider = "s3" }, want: "storage.bucket"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Provider = "local" }, want: "storage.local.dir"},
		{name: "unknown provider", mutate: func(c *Config) { c.Storage.Provider = "ftp" }, want: "storage.provider"},
		{name: "half notify", mutate: func(c *Config) { c.Notify.PubSubTopic = "records" }, want: "notify.pubsub_project"},
		{name: "two otlp endpoints", mutate: func(c *Config) {
			c.Telemetry.OTLPGrpcEndpoint = "http://localhost:4317"
			c.Telemetry.OTLPHTTPEndpoint = "http://localhost:4318"
		}, want: "telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
