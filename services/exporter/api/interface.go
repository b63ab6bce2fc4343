package api

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/catalog"
)

// MetaProvider browses the namespaces and metrics offered by the monitoring service
type MetaProvider interface {
	Projects(ctx context.Context) ([]catalog.Project, error)
	Metrics(ctx context.Context, namespace string) ([]catalog.MetricMeta, error)
	ConfigSnippet(ctx context.Context, namespace string) (catalog.Snippet, error)
	IsInterfaceNil() bool
}
