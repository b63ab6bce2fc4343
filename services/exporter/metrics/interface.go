package metrics

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
)

// FamilySource produces the metric families of one collection cycle
type FamilySource interface {
	Collect(ctx context.Context) []common.MetricFamily
	IsInterfaceNil() bool
}
