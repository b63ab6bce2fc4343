package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/tidwall/gjson"
)

// PerformanceNamespace is the namespace whose metrics are per instance performance keys
const PerformanceNamespace = "rds_performance"

const (
	rdsVersion             = "2014-08-15"
	performanceAction      = "DescribeDBInstancePerformance"
	performanceTimeFormat  = "2006-01-02T15:04Z"
	performanceKeysPath    = "PerformanceKeys.PerformanceKey"
	instanceIDField        = "DBInstanceId"
	instanceRegionField    = "RegionId"
	instanceIDLabel        = "instanceId"
	defaultPerformanceName = "value"
	valueSeparator         = "&"
)

// performanceWindow returns the one minute window ending at the current UTC minute boundary
func performanceWindow(now time.Time) (string, string) {
	end := now.UTC().Truncate(time.Minute)
	start := end.Add(-time.Minute)

	return start.Format(performanceTimeFormat), end.Format(performanceTimeFormat)
}

func performanceRequest(instanceID string, regionID string, keys []string, now time.Time) client.Request {
	start, end := performanceWindow(now)

	return client.NewRPCRequest(client.CentralDomain("rds"), rdsVersion, performanceAction, regionID, map[string]string{
		"DBInstanceId": instanceID,
		"Key":          strings.Join(keys, ","),
		"StartTime":    start,
		"EndTime":      end,
	})
}

type performanceValue struct {
	subName string
	value   float64
}

// parsePerformanceKey zips the & separated value format with the first returned value.
// A key without values yields nothing.
func parsePerformanceKey(key gjson.Result) (string, []performanceValue, error) {
	name := key.Get("Key").String()
	values := key.Get("Values.PerformanceValue").Array()
	if len(values) == 0 {
		return name, nil, nil
	}

	subNames := []string{defaultPerformanceName}
	valueFormat := key.Get("ValueFormat").String()
	if strings.Contains(valueFormat, valueSeparator) {
		subNames = strings.Split(valueFormat, valueSeparator)
	}

	rawValues := strings.Split(values[0].Get("Value").String(), valueSeparator)
	result := make([]performanceValue, 0, len(subNames))
	for i := 0; i < len(subNames) && i < len(rawValues); i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(rawValues[i]), 64)
		if err != nil {
			return name, nil, fmt.Errorf("key %s: invalid value %q: %w", name, rawValues[i], err)
		}
		result = append(result, performanceValue{
			subName: subNames[i],
			value:   value,
		})
	}

	return name, result, nil
}

type performanceInstance struct {
	id       string
	regionID string
}

func performanceInstances(rds common.InfoResult, defaultRegion string) []performanceInstance {
	instances := make([]performanceInstance, 0, len(rds.Records))
	for _, record := range rds.Records {
		id := record[instanceIDField]
		if len(id) == 0 {
			continue
		}

		regionID := record[instanceRegionField]
		if len(regionID) == 0 {
			regionID = defaultRegion
		}
		instances = append(instances, performanceInstance{
			id:       id,
			regionID: regionID,
		})
	}

	return instances
}

// collectPerformance issues one call per instance, sequentially, and merges the resulting families.
// A failing instance is logged and skipped.
func (cc *cloudCollector) collectPerformance(ctx context.Context, rds common.InfoResult) []common.MetricFamily {
	keys := make([]string, 0)
	for _, spec := range cc.config.Metrics[PerformanceNamespace].Metrics {
		keys = append(keys, spec.Name)
	}

	families := make([]common.MetricFamily, 0)
	familyIndex := make(map[string]int)
	succeeded := make(map[string]bool)

	for _, instance := range performanceInstances(rds, cc.config.Credential.RegionID) {
		req := performanceRequest(instance.id, instance.regionID, keys, cc.now())
		body, err := cc.client.Fetch(ctx, PerformanceNamespace, req)
		if err != nil {
			log.Warn("performance counters fetch failed", "instance", instance.id, "error", err)
			continue
		}

		perfKeys := gjson.GetBytes(body, performanceKeysPath)
		if !perfKeys.IsArray() {
			log.Warn("performance counters fetch failed", "instance", instance.id,
				"error", client.NewPathNotFoundError(performanceKeysPath))
			continue
		}

		for _, perfKey := range perfKeys.Array() {
			name, values, errParse := parsePerformanceKey(perfKey)
			if errParse != nil {
				log.Warn("invalid performance counter", "instance", instance.id, "error", errParse)
				continue
			}

			for _, v := range values {
				familyName := FamilyName(PerformanceNamespace, name+"_"+v.subName)
				idx, found := familyIndex[familyName]
				if !found {
					idx = len(families)
					familyIndex[familyName] = idx
					families = append(families, common.MetricFamily{
						Name:   familyName,
						Help:   fmt.Sprintf("Performance counter %s (%s).", name, v.subName),
						Kind:   common.KindGauge,
						Labels: []string{instanceIDLabel},
					})
				}

				families[idx].Samples = append(families[idx].Samples, common.Sample{
					LabelValues: []string{instance.id},
					Value:       v.value,
				})
				succeeded[name] = true
			}
		}
	}

	for _, key := range keys {
		families = append(families, UpFamily(FamilyName(PerformanceNamespace, key), succeeded[key]))
	}

	return families
}

func performanceFallback(cc *cloudCollector) []common.MetricFamily {
	specs := cc.config.Metrics[PerformanceNamespace].Metrics
	families := make([]common.MetricFamily, 0, len(specs))
	for _, spec := range specs {
		families = append(families, UpFamily(FamilyName(PerformanceNamespace, spec.Name), false))
	}

	return families
}
