package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/multiversx/mx-chain-core-go/core/check"
	"github.com/tidwall/gjson"
)

const (
	// Namespace labels the catalogue calls in the request histograms
	Namespace = "catalog"

	cmsProduct    = "metrics"
	cmsVersion    = "2019-01-01"
	resourcesPath = "Resources.Resource"
	pageSize      = 100
)

// ErrNilClient signals that a nil client has been provided
var ErrNilClient = errors.New("nil client")

// ErrEmptyRegion signals that no region has been provided
var ErrEmptyRegion = errors.New("empty region")

// Client performs rate limited upstream calls
type Client interface {
	Fetch(ctx context.Context, namespace string, req client.Request) ([]byte, error)
	IsInterfaceNil() bool
}

// Project is one monitoring namespace as advertised by the upstream
type Project struct {
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
	Labels      string `json:"labels,omitempty"`
}

// MetricMeta describes one metric of a namespace
type MetricMeta struct {
	MetricName  string `json:"metricName"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Periods     string `json:"periods"`
	Statistics  string `json:"statistics"`
	Dimensions  string `json:"dimensions"`
}

// SnippetMetric is a ready to paste metric item
type SnippetMetric struct {
	Name   string `yaml:"name" json:"name"`
	Rename string `yaml:"rename,omitempty" json:"rename,omitempty"`
	Period int    `yaml:"period,omitempty" json:"period,omitempty"`
}

// Snippet is a ready to paste namespace section of the configuration file
type Snippet struct {
	Metrics []SnippetMetric `yaml:"metrics" json:"metrics"`
}

// ArgsMetaProvider holds the arguments needed to create a metadata catalogue provider
type ArgsMetaProvider struct {
	Client   Client
	RegionID string
}

type metaProvider struct {
	client   Client
	regionID string
}

// NewMetaProvider creates the provider browsing the available namespaces and metrics
func NewMetaProvider(args ArgsMetaProvider) (*metaProvider, error) {
	if check.IfNil(args.Client) {
		return nil, ErrNilClient
	}
	if len(args.RegionID) == 0 {
		return nil, ErrEmptyRegion
	}

	return &metaProvider{
		client:   args.Client,
		regionID: args.RegionID,
	}, nil
}

// Projects lists the available namespaces
func (mp *metaProvider) Projects(ctx context.Context) ([]Project, error) {
	items, err := mp.query(ctx, "DescribeProjectMeta", nil)
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(items))
	for _, item := range items {
		projects = append(projects, Project{
			Namespace:   item.Get("Namespace").String(),
			Description: item.Get("Description").String(),
			Labels:      item.Get("Labels").String(),
		})
	}

	return projects, nil
}

// Metrics lists the metrics of a namespace
func (mp *metaProvider) Metrics(ctx context.Context, namespace string) ([]MetricMeta, error) {
	items, err := mp.query(ctx, "DescribeMetricMetaList", map[string]string{"Namespace": namespace})
	if err != nil {
		return nil, err
	}

	metrics := make([]MetricMeta, 0, len(items))
	for _, item := range items {
		metrics = append(metrics, MetricMeta{
			MetricName:  item.Get("MetricName").String(),
			Description: item.Get("Description").String(),
			Unit:        item.Get("Unit").String(),
			Periods:     item.Get("Periods").String(),
			Statistics:  item.Get("Statistics").String(),
			Dimensions:  item.Get("Dimensions").String(),
		})
	}

	return metrics, nil
}

// ConfigSnippet returns the configuration section querying every metric of the namespace
func (mp *metaProvider) ConfigSnippet(ctx context.Context, namespace string) (Snippet, error) {
	metrics, err := mp.Metrics(ctx, namespace)
	if err != nil {
		return Snippet{}, err
	}

	snippet := Snippet{
		Metrics: make([]SnippetMetric, 0, len(metrics)),
	}
	for _, metric := range metrics {
		item := SnippetMetric{
			Name:   metric.MetricName,
			Period: FirstPeriod(metric.Periods),
		}
		if formatted := FormatMetricName(metric.MetricName); formatted != metric.MetricName {
			item.Rename = formatted
		}

		snippet.Metrics = append(snippet.Metrics, item)
	}

	return snippet, nil
}

func (mp *metaProvider) query(ctx context.Context, action string, params map[string]string) ([]gjson.Result, error) {
	if params == nil {
		params = make(map[string]string)
	}
	params["PageSize"] = strconv.Itoa(pageSize)

	req := client.NewRPCRequest(client.RegionalDomain(cmsProduct, mp.regionID), cmsVersion, action, mp.regionID, params)
	body, err := mp.client.Fetch(ctx, Namespace, req)
	if err != nil {
		return nil, err
	}

	resources := gjson.GetBytes(body, resourcesPath)
	if !resources.Exists() {
		return nil, &client.FetchError{
			Namespace: Namespace,
			Subject:   req.Subject(),
			Action:    action,
			Err:       client.NewPathNotFoundError(resourcesPath),
		}
	}

	return resources.Array(), nil
}

// FormatMetricName turns a raw metric name into one usable as a metric name suffix
func FormatMetricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// FirstPeriod returns the first of the comma separated periods, 0 if it is not a number
func FirstPeriod(periods string) int {
	first, _, _ := strings.Cut(periods, ",")
	period, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0
	}

	return period
}

// IsInterfaceNil returns true if the value under the interface is nil
func (mp *metaProvider) IsInterfaceNil() bool {
	return mp == nil
}
