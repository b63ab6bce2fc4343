package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Measures accepted in a metric definition
const (
	MeasureAverage = "Average"
	MeasureMaximum = "Maximum"
	MeasureMinimum = "Minimum"
	MeasureValue   = "Value"
)

const (
	defaultRegion                = "cn-hangzhou"
	defaultPeriodInSeconds       = 60
	defaultRateLimit             = 10
	defaultRatePeriodInSeconds   = 1
	defaultProtocol              = "http"
	defaultRequestTimeoutSeconds = 10
	defaultInfoCacheTTLSeconds   = 3600
)

// Environment variables that override the file configuration
const (
	EnvAccessID     = "ALIYUN_ACCESS_ID"
	EnvAccessSecret = "ALIYUN_ACCESS_SECRET"
	EnvEntrypoint   = "ALIYUN_ENTRYPOINT"
	EnvProtocolType = "PROTOCOL_TYPE"
	EnvCacheMetrics = "CACHE_METRICS"
)

// ErrConfig signals an invalid configuration, detected before any collection starts
var ErrConfig = errors.New("configuration error")

// Credential holds the access key pair and the home region
type Credential struct {
	AccessKeyID     string `toml:"AccessKeyID" yaml:"access_key_id"`
	AccessKeySecret string `toml:"AccessKeySecret" yaml:"access_key_secret"`
	RegionID        string `toml:"RegionID" yaml:"region_id"`
}

// MetricSpec identifies one queryable series within a namespace
type MetricSpec struct {
	Name    string `toml:"Name" yaml:"name"`
	Rename  string `toml:"Rename" yaml:"rename"`
	Period  int    `toml:"Period" yaml:"period"`
	Measure string `toml:"Measure" yaml:"measure"`
}

// EffectiveName returns the rename when set, the raw name otherwise
func (ms MetricSpec) EffectiveName() string {
	if len(ms.Rename) > 0 {
		return ms.Rename
	}

	return ms.Name
}

// EffectivePeriod returns the period in seconds, 60 if not set
func (ms MetricSpec) EffectivePeriod() int {
	if ms.Period > 0 {
		return ms.Period
	}

	return defaultPeriodInSeconds
}

// EffectiveMeasure returns the measure, Average if not set
func (ms MetricSpec) EffectiveMeasure() string {
	if len(ms.Measure) > 0 {
		return ms.Measure
	}

	return MeasureAverage
}

// NamespaceConfig lists the metrics queried from one namespace
type NamespaceConfig struct {
	Metrics     []MetricSpec    `toml:"Metrics" yaml:"metrics"`
	ExtraLabels *ExtraLabelSpec `toml:"ExtraLabels" yaml:"extra_labels,omitempty"`
}

// InfoMetricConfig lists the regions a metadata resource is fetched from
type InfoMetricConfig struct {
	RegionIDs []string `toml:"RegionIDs" yaml:"region_ids"`
}

// Config maps to the exporter's configuration file
type Config struct {
	Credential              Credential                  `toml:"Credential" yaml:"credential"`
	RateLimit               int                         `toml:"RateLimit" yaml:"rate_limit"`
	RatePeriod              int                         `toml:"RatePeriod" yaml:"rate_period"`
	PoolSize                int                         `toml:"PoolSize" yaml:"pool_size"`
	CacheMetrics            *bool                       `toml:"CacheMetrics" yaml:"cache_metrics"`
	ProtocolType            string                      `toml:"ProtocolType" yaml:"protocol_type"`
	RequestTimeoutInSeconds int                         `toml:"RequestTimeoutInSeconds" yaml:"request_timeout_seconds"`
	InfoCacheTTLInSeconds   int                         `toml:"InfoCacheTTLInSeconds" yaml:"info_cache_ttl_seconds"`
	AdminAPIKey             string                      `toml:"AdminAPIKey" yaml:"admin_api_key"`
	Metrics                 map[string]NamespaceConfig  `toml:"Metrics" yaml:"metrics"`
	InfoMetrics             map[string]InfoMetricConfig `toml:"InfoMetrics" yaml:"info_metrics"`
}

// LoadConfig parses a TOML or YAML file (chosen by extension) into the Config struct and applies defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every unset tunable with its default value
func (cfg *Config) ApplyDefaults() {
	if len(cfg.Credential.RegionID) == 0 {
		cfg.Credential.RegionID = defaultRegion
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RatePeriod == 0 {
		cfg.RatePeriod = defaultRatePeriodInSeconds
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = cfg.RateLimit
	}
	if cfg.CacheMetrics == nil {
		enabled := true
		cfg.CacheMetrics = &enabled
	}
	if len(cfg.ProtocolType) == 0 {
		cfg.ProtocolType = defaultProtocol
	}
	if cfg.RequestTimeoutInSeconds == 0 {
		cfg.RequestTimeoutInSeconds = defaultRequestTimeoutSeconds
	}
	if cfg.InfoCacheTTLInSeconds == 0 {
		cfg.InfoCacheTTLInSeconds = defaultInfoCacheTTLSeconds
	}
}

// ApplyEnvOverrides replaces file values with the non-empty environment ones
func (cfg *Config) ApplyEnvOverrides(getenv func(string) string) error {
	if value := getenv(EnvAccessID); len(value) > 0 {
		cfg.Credential.AccessKeyID = value
	}
	if value := getenv(EnvAccessSecret); len(value) > 0 {
		cfg.Credential.AccessKeySecret = value
	}
	if value := getenv(EnvEntrypoint); len(value) > 0 {
		cfg.Credential.RegionID = value
	}
	if value := getenv(EnvProtocolType); len(value) > 0 {
		cfg.ProtocolType = value
	}
	if value := getenv(EnvCacheMetrics); len(value) > 0 {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: invalid %s value %q", ErrConfig, EnvCacheMetrics, value)
		}
		cfg.CacheMetrics = &enabled
	}

	return nil
}

// CacheEnabled returns true if metric datapoints should be cached
func (cfg *Config) CacheEnabled() bool {
	return cfg.CacheMetrics == nil || *cfg.CacheMetrics
}

// Namespaces returns the configured namespaces in a stable order
func (cfg *Config) Namespaces() []string {
	namespaces := make([]string, 0, len(cfg.Metrics))
	for namespace := range cfg.Metrics {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	return namespaces
}

// InfoResources returns the configured metadata resources in a stable order
func (cfg *Config) InfoResources() []string {
	resources := make([]string, 0, len(cfg.InfoMetrics))
	for resource := range cfg.InfoMetrics {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	return resources
}

// RegionsFor returns the regions a metadata resource is fetched from, defaulting to the credential region
func (cfg *Config) RegionsFor(resource string) []string {
	infoCfg, found := cfg.InfoMetrics[resource]
	if !found || len(infoCfg.RegionIDs) == 0 {
		return []string{cfg.Credential.RegionID}
	}

	return infoCfg.RegionIDs
}

// Validate checks the configuration for mistakes that must stop the exporter at startup
func (cfg *Config) Validate() error {
	if len(cfg.Credential.AccessKeyID) == 0 || len(cfg.Credential.AccessKeySecret) == 0 {
		return fmt.Errorf("%w: credential is not fully configured", ErrConfig)
	}
	if cfg.RateLimit <= 0 || cfg.RatePeriod <= 0 {
		return fmt.Errorf("%w: rate_limit and rate_period must be positive", ErrConfig)
	}
	if cfg.PoolSize <= 0 {
		return fmt.Errorf("%w: pool_size must be positive", ErrConfig)
	}
	if cfg.ProtocolType != "http" && cfg.ProtocolType != "https" {
		return fmt.Errorf("%w: protocol_type must be \"http\" or \"https\", got %q", ErrConfig, cfg.ProtocolType)
	}

	for _, namespace := range cfg.Namespaces() {
		nsCfg := cfg.Metrics[namespace]
		for idx, metric := range nsCfg.Metrics {
			err := validateMetric(metric)
			if err != nil {
				return fmt.Errorf("%w: namespace %s, metric #%d: %s", ErrConfig, namespace, idx, err.Error())
			}
		}

		err := cfg.validateExtraLabels(nsCfg.ExtraLabels)
		if err != nil {
			return fmt.Errorf("%w: namespace %s: %s", ErrConfig, namespace, err.Error())
		}
	}

	return nil
}

func validateMetric(metric MetricSpec) error {
	if len(metric.Name) == 0 {
		return errors.New("name must be set in metric item")
	}
	if metric.Period < 0 {
		return fmt.Errorf("negative period %d", metric.Period)
	}

	switch metric.EffectiveMeasure() {
	case MeasureAverage, MeasureMaximum, MeasureMinimum, MeasureValue:
		return nil
	default:
		return fmt.Errorf("unknown measure %q", metric.Measure)
	}
}

func (cfg *Config) validateExtraLabels(extra *ExtraLabelSpec) error {
	if extra == nil {
		return nil
	}
	if !extra.IsSet() {
		return errors.New("extra_labels needs fromInfo, labels and keys")
	}
	if _, found := cfg.InfoMetrics[extra.FromInfo]; !found {
		return fmt.Errorf("extra_labels references %q which is missing from info_metrics", extra.FromInfo)
	}

	return nil
}
