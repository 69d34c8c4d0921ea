// Package config loads and validates Sprinkler's configuration, rooted at
// /etc/sprinkler.conf.d/config.toml. Structure and style: a Defaults()
// populating every field, a Load() that reads-then-validates, and a
// Validate() that accumulates every violation into one joined error
// rather than failing on the first.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Version, GitCommit, BuildTime are injected by the build via -ldflags,
// reported by both binaries' -version flag.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// DefaultConfigPath is the default location for both binaries.
const DefaultConfigPath = "/etc/sprinkler.conf.d/config.toml"

// DefaultMasterCertPath is the default pinned master certificate.
const DefaultMasterCertPath = "/etc/sprinkler.conf.d/master.crt"

// DefaultMasterListenAddr is the master's default bind address.
const DefaultMasterListenAddr = "0.0.0.0:3777"

// Duration wraps time.Duration so TOML strings like "30s" decode via
// time.ParseDuration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the root configuration tree, shared by sprinkler-agent and
// sprinkler-master; each binary reads only the sections relevant to its
// role.
type Config struct {
	// Hostname identifies this node's sprinklers. Default: OS hostname.
	Hostname string `toml:"hostname"`

	Agent         AgentConfig         `toml:"agent"`
	Master        MasterConfig        `toml:"master"`
	Remediation   RemediationConfig   `toml:"remediation"`
	Observability ObservabilityConfig `toml:"observability"`
}

// AgentConfig holds agent-role parameters.
type AgentConfig struct {
	// MasterAddr is the host:port the agent's notifier dials. Required.
	MasterAddr string `toml:"master_addr"`

	// MasterCertPath is the pinned master certificate the notifier trusts
	// as its sole root. Default: DefaultMasterCertPath.
	MasterCertPath string `toml:"master_cert_path"`

	// Heartbeat is the CommCheck liveness ping period. Default: 30s.
	Heartbeat Duration `toml:"heartbeat"`
}

// MasterConfig holds master-role parameters.
type MasterConfig struct {
	// ListenAddr is the TLS listen address. Default: DefaultMasterListenAddr.
	ListenAddr string `toml:"listen_addr"`

	// CertFile and KeyFile are the master's own TLS identity, presented to
	// connecting agents.
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// KnownSprinklerIDs pre-registers an inbox for each listed sprinkler
	// id at startup. Full fleet registration (discovering ids dynamically)
	// is out of scope; this is the minimal static stand-in so the master
	// binary has somewhere to route decoded envelopes.
	KnownSprinklerIDs []uint64 `toml:"known_sprinkler_ids"`
}

// RemediationConfig holds the RemediationDispatcher's tunable constants.
// Not generally meant to be overridden in production — exposed so
// unusual fleets can retune cadence without a code change.
type RemediationConfig struct {
	// RateThresholdHz is the anticipated/other-OOM escalate threshold.
	// Default: 10.
	RateThresholdHz float64 `toml:"rate_threshold_hz"`

	// PanicThresholdHz is the other-panic flood-report threshold.
	// Default: 70.
	PanicThresholdHz float64 `toml:"panic_threshold_hz"`

	// MaxRetry is the Fixing(n) retry ceiling before GaveUp. Default: 20.
	MaxRetry uint `toml:"max_retry"`

	// PodDividerInterval is the per-pod FrequencyDivider interval.
	// Default: 5.
	PodDividerInterval uint `toml:"pod_divider_interval"`

	// CatchAllDividerInterval is the "." bucket's FrequencyDivider
	// interval. Default: 15.
	CatchAllDividerInterval uint `toml:"catch_all_divider_interval"`
}

// ObservabilityConfig holds logging and metrics parameters.
type ObservabilityConfig struct {
	// LogLevel is the zap level name ("info", "debug", ...). Overridden
	// at runtime by the CLI's repeated -v flag when present; this is the
	// floor used when -v is absent. Default: info.
	LogLevel string `toml:"log_level"`

	// LogFormat is "json" or "console". Default: json.
	LogFormat string `toml:"log_format"`

	// MetricsAddr is the Prometheus /metrics HTTP bind address. Empty
	// disables the metrics server. Default: 127.0.0.1:9091.
	MetricsAddr string `toml:"metrics_addr"`
}

// Defaults returns a Config populated with every default value.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		Hostname: hostname,
		Agent: AgentConfig{
			MasterCertPath: DefaultMasterCertPath,
			Heartbeat:      Duration{30 * time.Second},
		},
		Master: MasterConfig{
			ListenAddr: DefaultMasterListenAddr,
		},
		Remediation: RemediationConfig{
			RateThresholdHz:         10,
			PanicThresholdHz:        70,
			MaxRetry:                20,
			PodDividerInterval:      5,
			CatchAllDividerInterval: 15,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: "127.0.0.1:9091",
		},
	}
}

// Load reads and validates a TOML config file at path, merging file
// values over Defaults(). Returns an error if the file cannot be read,
// parsed, or validated — a configuration error is fatal at startup.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: decode %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the required fields, heartbeat, thresholds, retry
// ceiling and log format, accumulating all violations into one error
// rather than stopping at the first. Log level, metrics address and
// divider intervals are not checked here.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Hostname == "" {
		errs = append(errs, "hostname must not be empty")
	}
	if cfg.Agent.MasterAddr == "" {
		errs = append(errs, "agent.master_addr must not be empty")
	}
	if cfg.Agent.MasterCertPath == "" {
		errs = append(errs, "agent.master_cert_path must not be empty")
	}
	if cfg.Agent.Heartbeat.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("agent.heartbeat must be > 0, got %s", cfg.Agent.Heartbeat.Duration))
	}
	if cfg.Master.ListenAddr == "" {
		errs = append(errs, "master.listen_addr must not be empty")
	}
	if cfg.Remediation.RateThresholdHz <= 0 {
		errs = append(errs, fmt.Sprintf("remediation.rate_threshold_hz must be > 0, got %f", cfg.Remediation.RateThresholdHz))
	}
	if cfg.Remediation.PanicThresholdHz <= 0 {
		errs = append(errs, fmt.Sprintf("remediation.panic_threshold_hz must be > 0, got %f", cfg.Remediation.PanicThresholdHz))
	}
	if cfg.Remediation.MaxRetry < 1 {
		errs = append(errs, fmt.Sprintf("remediation.max_retry must be >= 1, got %d", cfg.Remediation.MaxRetry))
	}
	switch cfg.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format must be \"json\" or \"console\", got %q", cfg.Observability.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
