package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	testString := `
RateLimit = 20
RatePeriod = 2
PoolSize = 8
ProtocolType = "https"

[Credential]
    AccessKeyID = "id"
    AccessKeySecret = "secret"
    RegionID = "cn-beijing"

[Metrics.acs_ecs_dashboard]
    [[Metrics.acs_ecs_dashboard.Metrics]]
        Name = "CPUUtilization"
        Period = 60
        Measure = "Maximum"

    [[Metrics.acs_ecs_dashboard.Metrics]]
        Name = "diskusage_utilization"
        Rename = "disk_usage"

[InfoMetrics.ecs]
    RegionIDs = ["cn-beijing", "cn-shanghai"]
`

	expectedCfg := Config{
		Credential: Credential{
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
			RegionID:        "cn-beijing",
		},
		RateLimit:    20,
		RatePeriod:   2,
		PoolSize:     8,
		ProtocolType: "https",
		Metrics: map[string]NamespaceConfig{
			"acs_ecs_dashboard": {
				Metrics: []MetricSpec{
					{Name: "CPUUtilization", Period: 60, Measure: "Maximum"},
					{Name: "diskusage_utilization", Rename: "disk_usage"},
				},
			},
		},
		InfoMetrics: map[string]InfoMetricConfig{
			"ecs": {RegionIDs: []string{"cn-beijing", "cn-shanghai"}},
		},
	}

	cfg := Config{}

	err := toml.Unmarshal([]byte(testString), &cfg)
	assert.Nil(t, err)
	assert.Equal(t, expectedCfg, cfg)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file should error", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
		assert.Nil(t, cfg)
		assert.Error(t, err)
	})
	t.Run("yaml file with ordered keys and label renames", func(t *testing.T) {
		t.Parallel()

		content := `
credential:
  access_key_id: id
  access_key_secret: secret
rate_limit: 5
cache_metrics: false
metrics:
  acs_ecs_dashboard:
    metrics:
      - name: CPUUtilization
    extra_labels:
      fromInfo: ecs
      labels:
        - InstanceName
        - ZoneId: zone
      keys:
        instanceId: InstanceId
        userId: OwnerId
info_metrics:
  ecs: {}
`
		path := filepath.Join(t.TempDir(), "aliyun-exporter.yml")
		require.Nil(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := LoadConfig(path)
		require.Nil(t, err)

		assert.Equal(t, "cn-hangzhou", cfg.Credential.RegionID)
		assert.Equal(t, 5, cfg.RateLimit)
		assert.Equal(t, 1, cfg.RatePeriod)
		assert.Equal(t, 5, cfg.PoolSize)
		assert.False(t, cfg.CacheEnabled())
		assert.Equal(t, "http", cfg.ProtocolType)

		extra := cfg.Metrics["acs_ecs_dashboard"].ExtraLabels
		require.NotNil(t, extra)
		assert.True(t, extra.IsSet())
		assert.Equal(t, JoinKeys{{Point: "instanceId", Info: "InstanceId"}, {Point: "userId", Info: "OwnerId"}}, extra.Keys)
		assert.Equal(t, []string{"InstanceName", "zone"}, extra.Labels.Names())
		assert.Equal(t, "ZoneId", extra.Labels[1].Source)
		assert.Equal(t, []string{"cn-hangzhou"}, cfg.RegionsFor("ecs"))
		assert.Nil(t, cfg.Validate())
	})
	t.Run("toml file", func(t *testing.T) {
		t.Parallel()

		content := `
[Credential]
    AccessKeyID = "id"
    AccessKeySecret = "secret"

[Metrics.acs_rds_dashboard]
    [[Metrics.acs_rds_dashboard.Metrics]]
        Name = "CpuUsage"

    [Metrics.acs_rds_dashboard.ExtraLabels]
        FromInfo = "rds"
        Labels = [{Source = "DBInstanceDescription", Target = "name"}]
        Keys = [{Point = "instanceId", Info = "DBInstanceId"}]

[InfoMetrics.rds]
    RegionIDs = ["cn-shanghai"]
`
		path := filepath.Join(t.TempDir(), "config.toml")
		require.Nil(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := LoadConfig(path)
		require.Nil(t, err)

		assert.True(t, cfg.CacheEnabled())
		assert.Equal(t, 10, cfg.PoolSize)
		assert.Equal(t, 3600, cfg.InfoCacheTTLInSeconds)
		assert.Equal(t, []string{"name"}, cfg.Metrics["acs_rds_dashboard"].ExtraLabels.Labels.Names())
		assert.Equal(t, []string{"cn-shanghai"}, cfg.RegionsFor("rds"))
		assert.Nil(t, cfg.Validate())
	})
}

func TestMetricSpec_Defaults(t *testing.T) {
	t.Parallel()

	spec := MetricSpec{Name: "CPUUtilization"}
	assert.Equal(t, "CPUUtilization", spec.EffectiveName())
	assert.Equal(t, 60, spec.EffectivePeriod())
	assert.Equal(t, MeasureAverage, spec.EffectiveMeasure())

	spec = MetricSpec{Name: "CPUUtilization", Rename: "cpu", Period: 300, Measure: MeasureValue}
	assert.Equal(t, "cpu", spec.EffectiveName())
	assert.Equal(t, 300, spec.EffectivePeriod())
	assert.Equal(t, MeasureValue, spec.EffectiveMeasure())
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvAccessID:     "env-id",
		EnvAccessSecret: "env-secret",
		EnvEntrypoint:   "cn-shenzhen",
		EnvProtocolType: "https",
		EnvCacheMetrics: "false",
	}
	getenv := func(key string) string {
		return env[key]
	}

	cfg := Config{Credential: Credential{AccessKeyID: "file-id"}}
	cfg.ApplyDefaults()
	err := cfg.ApplyEnvOverrides(getenv)
	require.Nil(t, err)

	assert.Equal(t, "env-id", cfg.Credential.AccessKeyID)
	assert.Equal(t, "env-secret", cfg.Credential.AccessKeySecret)
	assert.Equal(t, "cn-shenzhen", cfg.Credential.RegionID)
	assert.Equal(t, "https", cfg.ProtocolType)
	assert.False(t, cfg.CacheEnabled())

	env[EnvCacheMetrics] = "sometimes"
	err = cfg.ApplyEnvOverrides(getenv)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	validConfig := func() Config {
		cfg := Config{
			Credential: Credential{AccessKeyID: "id", AccessKeySecret: "secret"},
			Metrics: map[string]NamespaceConfig{
				"acs_ecs_dashboard": {Metrics: []MetricSpec{{Name: "CPUUtilization"}}},
			},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		assert.Nil(t, cfg.Validate())
	})
	t.Run("missing secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Credential.AccessKeySecret = ""
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), "credential")
	})
	t.Run("metric without name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics["acs_ecs_dashboard"] = NamespaceConfig{Metrics: []MetricSpec{{Period: 60}}}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), "name must be set")
	})
	t.Run("unknown measure", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics["acs_ecs_dashboard"] = NamespaceConfig{Metrics: []MetricSpec{{Name: "x", Measure: "Median"}}}
		assert.ErrorIs(t, cfg.Validate(), ErrConfig)
	})
	t.Run("unknown protocol", func(t *testing.T) {
		cfg := validConfig()
		cfg.ProtocolType = "ftp"
		assert.ErrorIs(t, cfg.Validate(), ErrConfig)
	})
	t.Run("extra labels from an unconfigured resource", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics["acs_ecs_dashboard"] = NamespaceConfig{
			Metrics: []MetricSpec{{Name: "CPUUtilization"}},
			ExtraLabels: &ExtraLabelSpec{
				FromInfo: "ecs",
				Labels:   LabelRefs{{Source: "InstanceName"}},
				Keys:     JoinKeys{{Point: "instanceId", Info: "InstanceId"}},
			},
		}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), "missing from info_metrics")
	})
}
