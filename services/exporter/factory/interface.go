package factory

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
)

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start() error
	Addresses() []string
	Close() error
}

// Collector runs one collection cycle per call
type Collector interface {
	Collect(ctx context.Context) []common.MetricFamily
	Close() error
	IsInterfaceNil() bool
}
