package collector

import (
	"context"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/info"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/join"
)

// MetricClient performs rate limited upstream calls
type MetricClient interface {
	Fetch(ctx context.Context, namespace string, req client.Request) ([]byte, error)
	IsInterfaceNil() bool
}

// InfoFetcher lists the resources of one type in one region
type InfoFetcher interface {
	ListResources(ctx context.Context, rt info.ResourceType, regionID string) (common.InfoResult, error)
	IsInterfaceNil() bool
}

// DatapointCache memoizes the datapoints of a (namespace, metric, period) triple
type DatapointCache interface {
	GetOrFetch(key string, ttl time.Duration, fetch func() ([]common.DataPoint, error)) ([]common.DataPoint, error)
	IsInterfaceNil() bool
}

// JoinCache memoizes join tables across namespaces sharing the same join declaration
type JoinCache interface {
	GetOrFetch(key string, ttl time.Duration, fetch func() (*join.Table, error)) (*join.Table, error)
	IsInterfaceNil() bool
}
