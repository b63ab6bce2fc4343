package collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/metrics"
	"github.com/tidwall/gjson"
)

const (
	cmsProduct       = "metrics"
	cmsVersion       = "2019-01-01"
	cmsAction        = "DescribeMetricLast"
	datapointsPath   = "Datapoints"
	timestampField   = "timestamp"
	upSuffix         = "_up"
	familyNamePrefix = "aliyun_"
)

// fields never exposed as labels
var reservedFields = map[string]struct{}{
	timestampField:        {},
	config.MeasureMaximum: {},
	config.MeasureMinimum: {},
	config.MeasureAverage: {},
	config.MeasureValue:   {},
	"userId":              {},
}

// FamilyName returns the exposed name of a metric of a namespace
func FamilyName(namespace string, name string) string {
	return familyNamePrefix + namespace + "_" + name
}

// UpFamily returns the sentinel family telling whether the fetch of the named family succeeded
func UpFamily(familyName string, succeeded bool) common.MetricFamily {
	value := 0.0
	if succeeded {
		value = 1
	}

	return common.MetricFamily{
		Name: familyName + upSuffix,
		Help: fmt.Sprintf("Did the %s fetch succeed.", familyName),
		Kind: common.KindGauge,
		Samples: []common.Sample{
			{Value: value},
		},
	}
}

func metricRequest(namespace string, spec config.MetricSpec, regionID string) client.Request {
	return client.NewRPCRequest(client.RegionalDomain(cmsProduct, regionID), cmsVersion, cmsAction, regionID, map[string]string{
		"Namespace":  namespace,
		"MetricName": spec.Name,
		"Period":     strconv.Itoa(spec.EffectivePeriod()),
	})
}

func datapointsCacheKey(namespace string, spec config.MetricSpec) string {
	return fmt.Sprintf("%s/%s/%d", namespace, spec.Name, spec.EffectivePeriod())
}

// parseDatapoints reads the Datapoints field which holds either a JSON encoded array or the array itself
func parseDatapoints(body []byte) ([]common.DataPoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, errMalformedBody
	}

	raw := gjson.GetBytes(body, datapointsPath)
	if !raw.Exists() {
		return nil, client.NewPathNotFoundError(datapointsPath)
	}

	list := raw
	if raw.Type == gjson.String {
		if !gjson.Valid(raw.Str) {
			return nil, fmt.Errorf("malformed %s field", datapointsPath)
		}
		list = gjson.Parse(raw.Str)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%s field is not an array", datapointsPath)
	}

	items := list.Array()
	points := make([]common.DataPoint, 0, len(items))
	for _, item := range items {
		dp := common.DataPoint{}
		item.ForEach(func(key, value gjson.Result) bool {
			dp.Fields = append(dp.Fields, common.Field{
				Name:  key.String(),
				Value: value,
			})
			return true
		})
		points = append(points, dp)
	}

	return points, nil
}

// labelKeys returns the dimension fields of a datapoint in response order
func labelKeys(dp common.DataPoint) []string {
	keys := make([]string, 0, len(dp.Fields))
	for _, field := range dp.Fields {
		if _, reserved := reservedFields[field.Name]; reserved {
			continue
		}
		keys = append(keys, field.Name)
	}

	return keys
}

// extraLabeler supplies the metadata derived labels appended to every sample
type extraLabeler interface {
	Lookup(dp common.DataPoint) []string
}

type emptyLabels int

// Lookup returns empty values
func (width emptyLabels) Lookup(_ common.DataPoint) []string {
	return make([]string, width)
}

// assembleFamily builds the gauge family of one metric. The label key set is fixed by the first point.
func assembleFamily(
	namespace string,
	spec config.MetricSpec,
	points []common.DataPoint,
	extraNames []string,
	extra extraLabeler,
) (common.MetricFamily, error) {
	measure := spec.EffectiveMeasure()
	pointKeys := labelKeys(points[0])

	labels := make([]string, 0, len(pointKeys)+len(extraNames))
	labels = append(labels, pointKeys...)
	labels = append(labels, extraNames...)
	err := checkDistinctLabels(namespace, spec, labels)
	if err != nil {
		return common.MetricFamily{}, err
	}

	family := common.MetricFamily{
		Name:    FamilyName(namespace, spec.EffectiveName()),
		Help:    fmt.Sprintf("%s of %s %s.", measure, namespace, spec.Name),
		Kind:    common.KindGauge,
		Labels:  labels,
		Samples: make([]common.Sample, 0, len(points)),
	}

	for _, dp := range points {
		value, found := dp.Get(measure)
		if !found {
			return common.MetricFamily{}, &MeasureNotFoundError{
				Namespace: namespace,
				Metric:    spec.EffectiveName(),
				Measure:   measure,
				Keys:      dp.Keys(),
			}
		}

		labelValues := make([]string, 0, len(labels))
		for _, key := range pointKeys {
			field, _ := dp.Get(key)
			labelValues = append(labelValues, field.String())
		}
		if len(extraNames) > 0 {
			labelValues = append(labelValues, extra.Lookup(dp)...)
		}

		sample := common.Sample{
			LabelValues: labelValues,
			Value:       value.Float(),
		}
		timestamp, hasTimestamp := dp.Get(timestampField)
		if hasTimestamp && timestamp.Type == gjson.Number {
			sample.Timestamp = time.UnixMilli(timestamp.Int())
		}

		family.Samples = append(family.Samples, sample)
	}

	return family, nil
}

// checkDistinctLabels rejects label sets that collide once exposed, as the whole family would be dropped
func checkDistinctLabels(namespace string, spec config.MetricSpec, labels []string) error {
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		name := metrics.SanitizeLabelName(label)
		if _, found := seen[name]; found {
			return &DuplicateLabelError{
				Namespace: namespace,
				Metric:    spec.EffectiveName(),
				Label:     name,
			}
		}
		seen[name] = struct{}{}
	}

	return nil
}

// infoFamily converts a merged metadata result into an info family
func infoFamily(result common.InfoResult) common.MetricFamily {
	family := common.MetricFamily{
		Name:    result.Name,
		Help:    result.Description,
		Kind:    common.KindInfo,
		Labels:  result.Labels,
		Samples: make([]common.Sample, 0, len(result.Records)),
	}

	for _, record := range result.Records {
		labelValues := make([]string, 0, len(result.Labels))
		for _, label := range result.Labels {
			labelValues = append(labelValues, record[label])
		}

		family.Samples = append(family.Samples, common.Sample{
			LabelValues: labelValues,
			Value:       1,
		})
	}

	return family
}
