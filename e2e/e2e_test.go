package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/factory"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/testsCommon"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/stretchr/testify/require"
)

var log = logger.GetOrCreate("e2e-test")

const exporterConfig = `
credential:
  access_key_id: e2e-id
  access_key_secret: e2e-secret
  region_id: cn-hangzhou
rate_limit: 3
rate_period: 1
admin_api_key: e2e-admin-key
info_metrics:
  ecs:
    region_ids: [cn-hangzhou]
metrics:
  acs_ecs_dashboard:
    extra_labels:
      fromInfo: ecs
      labels:
        - InstanceName: instance_name
        - ZoneId
      keys:
        instanceId: InstanceId
    metrics:
      - name: CPUUtilization
        rename: cpu
      - name: memory_usedutilization
        measure: Maximum
      - name: broken_metric
  rds_performance:
    metrics:
      - name: MySQL_MemCpuUsage
`

func datapoints(points string) []byte {
	encoded, _ := json.Marshal(points)
	return []byte(`{"Datapoints":` + string(encoded) + `}`)
}

func createUpstream(numCalls *atomic.Int32) *testsCommon.TransportStub {
	return &testsCommon.TransportStub{
		DoHandler: func(ctx context.Context, req client.Request) ([]byte, error) {
			numCalls.Add(1)

			switch req.Action {
			case "DescribeInstances":
				return []byte(`{"Instances":{"Instance":[
					{"InstanceId":"i-1","InstanceName":"web-1","ZoneId":"cn-hangzhou-b","VpcAttributes":{"PrivateIpAddress":{"IpAddress":["172.16.0.1"]}}}
				]}}`), nil
			case "DescribeDBInstances":
				return []byte(`{"Items":{"DBInstance":[{"DBInstanceId":"rm-1","RegionId":"cn-hangzhou"}]}}`), nil
			case "DescribeDBInstancePerformance":
				return []byte(`{"PerformanceKeys":{"PerformanceKey":[
					{"Key":"MySQL_MemCpuUsage","ValueFormat":"cpu&mem","Values":{"PerformanceValue":[{"Value":"10&20"}]}}
				]}}`), nil
			case "DescribeProjectMeta":
				return []byte(`{"Resources":{"Resource":[{"Namespace":"acs_ecs_dashboard","Description":"ECS"}]}}`), nil
			case "DescribeMetricLast":
				switch req.Params["MetricName"] {
				case "CPUUtilization":
					return datapoints(`[{"timestamp":1700000000000,"userId":"1","instanceId":"i-1","Average":12.5},{"timestamp":1700000000000,"userId":"1","instanceId":"i-2","Average":3}]`), nil
				case "memory_usedutilization":
					return datapoints(`[{"timestamp":1700000000000,"instanceId":"i-1","Maximum":80}]`), nil
				default:
					return nil, errors.New("upstream returned 500")
				}
			default:
				return nil, errors.New("unexpected action " + req.Name())
			}
		},
	}
}

func httpGet(t *testing.T, url string, apiKey string) (int, string) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if len(apiKey) > 0 {
		req.Header.Set("X-Api-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestE2EScrape(t *testing.T) {
	log.Info("======== 1. Write and load the exporter configuration")
	configPath := filepath.Join(t.TempDir(), "aliyun-exporter.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(exporterConfig), 0600))

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	log.Info("======== 2. Start the exporter with a stubbed upstream")
	numCalls := &atomic.Int32{}
	handler, err := factory.NewComponentsHandler(factory.ArgsComponentsHandler{
		Config:          cfg,
		ListenAddresses: []string{"127.0.0.1:0"},
		Transport:       createUpstream(numCalls),
	})
	require.NoError(t, err)
	require.NoError(t, handler.Start())
	defer handler.Close()

	baseURL := "http://" + handler.GetServer().Addresses()[0]

	log.Info("======== 3. Scrape: 3 metrics + 2 info lists + 1 performance call at 3 calls per second")
	start := time.Now()
	status, body := httpGet(t, baseURL+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int32(6), numCalls.Load())
	require.GreaterOrEqual(t, time.Since(start), time.Second)

	log.Info("======== 4. Verify the joined families and the sentinels")
	require.Contains(t, body, `aliyun_acs_ecs_dashboard_cpu{ZoneId="cn-hangzhou-b",instanceId="i-1",instance_name="web-1"} 12.5 1700000000000`)
	require.Contains(t, body, `aliyun_acs_ecs_dashboard_cpu{ZoneId="",instanceId="i-2",instance_name=""} 3 1700000000000`)
	require.Contains(t, body, `aliyun_acs_ecs_dashboard_memory_usedutilization{ZoneId="cn-hangzhou-b",instanceId="i-1",instance_name="web-1"} 80 1700000000000`)
	require.Contains(t, body, "aliyun_acs_ecs_dashboard_cpu_up 1")
	require.Contains(t, body, "aliyun_acs_ecs_dashboard_memory_usedutilization_up 1")
	require.Contains(t, body, "aliyun_acs_ecs_dashboard_broken_metric_up 0")
	require.NotContains(t, body, "aliyun_acs_ecs_dashboard_broken_metric{")

	log.Info("======== 5. Verify the metadata and performance families")
	require.Contains(t, body, `aliyun_meta_ecs_info{InstanceId="i-1",InstanceName="web-1",VpcAttributes="172.16.0.1",ZoneId="cn-hangzhou-b"} 1`)
	require.NotContains(t, body, "aliyun_meta_rds_info")
	require.Contains(t, body, `aliyun_rds_performance_MySQL_MemCpuUsage_cpu{instanceId="rm-1"} 10`)
	require.Contains(t, body, `aliyun_rds_performance_MySQL_MemCpuUsage_mem{instanceId="rm-1"} 20`)
	require.Contains(t, body, "aliyun_rds_performance_MySQL_MemCpuUsage_up 1")

	log.Info("======== 6. Second scrape reuses the cached datapoints and metadata")
	status, body = httpGet(t, baseURL+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	// the failed metric is not cached, the performance counters are always queried
	require.Equal(t, int32(8), numCalls.Load())
	require.Contains(t, body, `cloudmonitor_request_wait_duration_seconds_count{limited="true"`)

	log.Info("======== 7. Admin endpoints")
	status, _ = httpGet(t, baseURL+"/api/projects", "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, body = httpGet(t, baseURL+"/api/projects", "e2e-admin-key")
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.Contains(body, `"namespace":"acs_ecs_dashboard"`))
}
