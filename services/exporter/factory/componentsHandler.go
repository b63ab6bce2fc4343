package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/api"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/cache"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/catalog"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/collector"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/info"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/join"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/metrics"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/ratelimit"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.GetOrCreate("factory")

// ErrNilConfig signals that a nil configuration has been provided
var ErrNilConfig = errors.New("nil config")

// ArgsComponentsHandler holds the arguments needed to wire the exporter
type ArgsComponentsHandler struct {
	Config          *config.Config
	ListenAddresses []string
	// Transport replaces the Alibaba Cloud SDK transport when set
	Transport client.Transport
}

type componentsHandler struct {
	transport client.Transport
	registry  *prometheus.Registry
	collector Collector
	server    Server
	cancel    context.CancelFunc
}

// NewComponentsHandler creates a new components handler
func NewComponentsHandler(args ArgsComponentsHandler) (*componentsHandler, error) {
	cfg := args.Config
	if cfg == nil {
		return nil, ErrNilConfig
	}

	transport := args.Transport
	if check.IfNil(transport) {
		var err error
		transport, err = client.NewAliyunTransport(client.ArgsAliyunTransport{
			AccessKeyID:     cfg.Credential.AccessKeyID,
			AccessKeySecret: cfg.Credential.AccessKeySecret,
			DefaultRegionID: cfg.Credential.RegionID,
			Protocol:        cfg.ProtocolType,
			Timeout:         time.Duration(cfg.RequestTimeoutInSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	ch, err := createComponents(cfg, args.ListenAddresses, transport)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	return ch, nil
}

func createComponents(cfg *config.Config, listenAddresses []string, transport client.Transport) (*componentsHandler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	histograms, err := metrics.NewRequestHistograms(registry)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.NewSlidingWindow(cfg.RateLimit, time.Duration(cfg.RatePeriod)*time.Second)
	if err != nil {
		return nil, err
	}

	limitedClient, err := client.NewLimitedClient(client.ArgsLimitedClient{
		Transport: transport,
		Limiter:   limiter,
		Observer:  histograms,
	})
	if err != nil {
		return nil, err
	}

	infoTTL := time.Duration(cfg.InfoCacheTTLInSeconds) * time.Second
	fetcher, err := info.NewFetcher(info.ArgsFetcher{
		Client: limitedClient,
		Cache:  cache.NewTTLCache[common.InfoResult](),
		TTL:    infoTTL,
	})
	if err != nil {
		return nil, err
	}

	var datapointCache collector.DatapointCache = cache.NewPassThrough[[]common.DataPoint]()
	if cfg.CacheEnabled() {
		datapointCache = cache.NewTTLCache[[]common.DataPoint]()
	}
	log.Debug("datapoint cache", "enabled", cfg.CacheEnabled())

	cloudCollector, err := collector.NewCloudCollector(collector.ArgsCloudCollector{
		Config:         cfg,
		Client:         limitedClient,
		InfoFetcher:    fetcher,
		DatapointCache: datapointCache,
		JoinCache:      cache.NewTTLCache[*join.Table](),
		JoinTTL:        infoTTL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := &componentsHandler{
		transport: transport,
		registry:  registry,
		collector: cloudCollector,
		cancel:    cancel,
	}

	ch.server, err = createServer(ctx, cfg, listenAddresses, registry, cloudCollector, limitedClient)
	if err != nil {
		cancel()
		_ = cloudCollector.Close()
		return nil, err
	}

	return ch, nil
}

func createServer(
	ctx context.Context,
	cfg *config.Config,
	listenAddresses []string,
	registry *prometheus.Registry,
	source metrics.FamilySource,
	limitedClient catalog.Client,
) (Server, error) {
	familyCollector, err := metrics.NewFamilyCollector(ctx, source)
	if err != nil {
		return nil, err
	}

	err = registry.Register(familyCollector)
	if err != nil {
		return nil, err
	}

	metaProvider, err := catalog.NewMetaProvider(catalog.ArgsMetaProvider{
		Client:   limitedClient,
		RegionID: cfg.Credential.RegionID,
	})
	if err != nil {
		return nil, err
	}

	return api.NewServer(api.ArgsWebServer{
		ListenAddresses: listenAddresses,
		AdminAPIKey:     cfg.AdminAPIKey,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog:      promLogger{},
			ErrorHandling: promhttp.ContinueOnError,
		}),
		MetaProvider:   metaProvider,
		GeneralHandler: api.CORSMiddleware,
	})
}

// GetRegistry returns the prometheus registry served on /metrics
func (ch *componentsHandler) GetRegistry() *prometheus.Registry {
	return ch.registry
}

// GetCollector returns the collection orchestrator
func (ch *componentsHandler) GetCollector() Collector {
	return ch.collector
}

// GetServer returns the server component
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start starts the inner components
func (ch *componentsHandler) Start() error {
	return ch.server.Start()
}

// Close closes the inner components
func (ch *componentsHandler) Close() {
	ch.cancel()
	_ = ch.server.Close()
	_ = ch.collector.Close()
	_ = ch.transport.Close()
}

// promLogger routes the exposition errors to the package logger
type promLogger struct{}

// Println -
func (pl promLogger) Println(v ...interface{}) {
	log.Warn("scrape error", "error", fmt.Sprint(v...))
}
