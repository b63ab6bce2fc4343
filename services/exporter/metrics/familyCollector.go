package metrics

import (
	"context"
	"strings"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/prometheus/client_golang/prometheus"
)

var log = logger.GetOrCreate("metrics")

const infoSuffix = "_info"

type familyCollector struct {
	ctx    context.Context
	source FamilySource
}

// NewFamilyCollector adapts a family source to a prometheus.Collector. The source is queried on every
// scrape with the provided context, so cancelling it stops new collection cycles.
func NewFamilyCollector(ctx context.Context, source FamilySource) (*familyCollector, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if check.IfNil(source) {
		return nil, ErrNilFamilySource
	}

	return &familyCollector{
		ctx:    ctx,
		source: source,
	}, nil
}

// Describe sends nothing: the exposed families depend on the upstream responses, making this an
// unchecked collector
func (fc *familyCollector) Describe(_ chan<- *prometheus.Desc) {
}

// Collect runs one collection cycle and converts every family into constant metrics.
// Invalid families or samples are logged and skipped.
func (fc *familyCollector) Collect(ch chan<- prometheus.Metric) {
	for _, family := range fc.source.Collect(fc.ctx) {
		desc := newDesc(family)
		for _, sample := range family.Samples {
			metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, sample.Value, sample.LabelValues...)
			if err != nil {
				log.Warn("skipped sample", "family", family.Name, "error", err)
				continue
			}
			if !sample.Timestamp.IsZero() {
				metric = prometheus.NewMetricWithTimestamp(sample.Timestamp, metric)
			}

			ch <- metric
		}
	}
}

func newDesc(family common.MetricFamily) *prometheus.Desc {
	name := SanitizeName(family.Name)
	if family.Kind == common.KindInfo && !strings.HasSuffix(name, infoSuffix) {
		name += infoSuffix
	}

	help := family.Help
	if len(help) == 0 {
		help = name
	}

	labels := make([]string, 0, len(family.Labels))
	for _, label := range family.Labels {
		labels = append(labels, SanitizeLabelName(label))
	}

	return prometheus.NewDesc(name, help, labels, nil)
}

// SanitizeName replaces every character not allowed in a metric name with an underscore
func SanitizeName(name string) string {
	return sanitize(name, true)
}

// SanitizeLabelName replaces every character not allowed in a label name with an underscore
func SanitizeLabelName(name string) string {
	return sanitize(name, false)
}

func sanitize(name string, allowColon bool) string {
	if len(name) == 0 {
		return "_"
	}

	var builder strings.Builder
	builder.Grow(len(name) + 1)
	for idx, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			builder.WriteRune(r)
		case r == ':' && allowColon:
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			if idx == 0 {
				builder.WriteRune('_')
			}
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	return builder.String()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (fc *familyCollector) IsInterfaceNil() bool {
	return fc == nil
}
