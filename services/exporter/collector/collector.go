package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/cache"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/info"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/join"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("collector")

// ArgsCloudCollector holds the arguments needed to create the collection orchestrator
type ArgsCloudCollector struct {
	Config         *config.Config
	Client         MetricClient
	InfoFetcher    InfoFetcher
	DatapointCache DatapointCache
	JoinCache      JoinCache
	JoinTTL        time.Duration
}

type infoTarget struct {
	resourceType info.ResourceType
	regions      []string
	exposed      bool
}

type cloudCollector struct {
	config         *config.Config
	client         MetricClient
	infoFetcher    InfoFetcher
	datapointCache DatapointCache
	joinCache      JoinCache
	joinTTL        time.Duration
	infoTargets    []infoTarget
	pool           *workerPool
	now            func() time.Time
}

// NewCloudCollector creates the orchestrator running one collection cycle per Collect call
func NewCloudCollector(args ArgsCloudCollector) (*cloudCollector, error) {
	err := checkArgs(args)
	if err != nil {
		return nil, err
	}

	targets, err := createInfoTargets(args.Config)
	if err != nil {
		return nil, err
	}

	return &cloudCollector{
		config:         args.Config,
		client:         args.Client,
		infoFetcher:    args.InfoFetcher,
		datapointCache: args.DatapointCache,
		joinCache:      args.JoinCache,
		joinTTL:        args.JoinTTL,
		infoTargets:    targets,
		pool:           newWorkerPool(args.Config.PoolSize),
		now:            time.Now,
	}, nil
}

func checkArgs(args ArgsCloudCollector) error {
	if args.Config == nil {
		return ErrNilConfig
	}
	if check.IfNil(args.Client) {
		return ErrNilClient
	}
	if check.IfNil(args.InfoFetcher) {
		return ErrNilInfoFetcher
	}
	if check.IfNil(args.DatapointCache) {
		return ErrNilDatapointCache
	}
	if check.IfNil(args.JoinCache) {
		return ErrNilJoinCache
	}
	if args.JoinTTL <= 0 {
		return ErrInvalidJoinTTL
	}
	if args.Config.PoolSize <= 0 {
		return ErrInvalidPoolSize
	}

	return nil
}

// createInfoTargets lists the configured metadata resources and, when the performance namespace is
// configured, the rds resource it discovers instances from
func createInfoTargets(cfg *config.Config) ([]infoTarget, error) {
	targets := make([]infoTarget, 0, len(cfg.InfoMetrics)+1)
	hasRDS := false
	for _, name := range cfg.InfoResources() {
		rt, err := info.ParseResourceType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrConfig, err.Error())
		}

		hasRDS = hasRDS || rt == info.RDS
		targets = append(targets, infoTarget{
			resourceType: rt,
			regions:      cfg.RegionsFor(name),
			exposed:      true,
		})
	}

	_, hasPerformance := cfg.Metrics[PerformanceNamespace]
	if hasPerformance && !hasRDS {
		targets = append(targets, infoTarget{
			resourceType: info.RDS,
			regions:      cfg.RegionsFor(info.RDS.String()),
		})
	}

	return targets, nil
}

// Collect runs one collection cycle and returns every metric family, sentinels and non-empty
// metadata families included. Failures only show up as up=0 sentinels and missing metadata families.
// Once started, a cycle is not cancelled by ctx.
func (cc *cloudCollector) Collect(ctx context.Context) []common.MetricFamily {
	if ctx.Err() != nil {
		log.Warn("collection not started", "error", ctx.Err())
		return nil
	}

	start := time.Now()
	taskCtx := context.WithoutCancel(ctx)

	infos := cc.collectInfo(taskCtx)
	families := cc.collectMetrics(taskCtx, infos)
	for _, target := range cc.infoTargets {
		result := infos[target.resourceType]
		if !target.exposed || len(result.Labels) == 0 {
			continue
		}

		families = append(families, infoFamily(result))
	}

	log.Debug("collection done", "families", len(families), "duration", time.Since(start))

	return families
}

type infoOutcome struct {
	target int
	region int
	result common.InfoResult
}

// collectInfo fetches every (resource, region) pair on the pool and merges the regions of each resource
func (cc *cloudCollector) collectInfo(ctx context.Context) map[info.ResourceType]common.InfoResult {
	numTasks := 0
	for _, target := range cc.infoTargets {
		numTasks += len(target.regions)
	}

	outcomes := make(chan infoOutcome, numTasks)
	for targetIdx, target := range cc.infoTargets {
		for regionIdx, region := range target.regions {
			task := func() {
				result, err := cc.infoFetcher.ListResources(ctx, target.resourceType, region)
				if err != nil {
					log.Warn("metadata fetch failed", "resource", target.resourceType.String(), "region", region, "error", err)
					result = common.InfoResult{}
				}
				outcomes <- infoOutcome{target: targetIdx, region: regionIdx, result: result}
			}
			if !cc.pool.submit(task) {
				outcomes <- infoOutcome{target: targetIdx, region: regionIdx}
			}
		}
	}

	perTarget := make([][]common.InfoResult, len(cc.infoTargets))
	for idx, target := range cc.infoTargets {
		perTarget[idx] = make([]common.InfoResult, len(target.regions))
	}
	for i := 0; i < numTasks; i++ {
		outcome := <-outcomes
		perTarget[outcome.target][outcome.region] = outcome.result
	}

	infos := make(map[info.ResourceType]common.InfoResult, len(cc.infoTargets))
	for idx, target := range cc.infoTargets {
		infos[target.resourceType] = mergeRegions(target.resourceType, perTarget[idx])
	}

	return infos
}

// mergeRegions concatenates the records of all regions, the label set comes from the first non-empty result
func mergeRegions(rt info.ResourceType, results []common.InfoResult) common.InfoResult {
	merged := common.InfoResult{
		Name:     rt.FamilyName(),
		Resource: rt.String(),
	}

	for _, result := range results {
		if len(result.Labels) == 0 {
			continue
		}
		if len(merged.Labels) == 0 {
			merged.Labels = result.Labels
			merged.Description = result.Description
		}
		fetchedEarlier := merged.FetchedAt.IsZero() || result.FetchedAt.Before(merged.FetchedAt)
		if !result.FetchedAt.IsZero() && fetchedEarlier {
			merged.FetchedAt = result.FetchedAt
		}
		merged.Records = append(merged.Records, result.Records...)
	}

	return merged
}

type metricTask struct {
	run      func() []common.MetricFamily
	fallback func() []common.MetricFamily
}

type metricOutcome struct {
	index    int
	families []common.MetricFamily
}

func (cc *cloudCollector) collectMetrics(ctx context.Context, infos map[info.ResourceType]common.InfoResult) []common.MetricFamily {
	tasks := cc.createMetricTasks(ctx, infos)

	outcomes := make(chan metricOutcome, len(tasks))
	for idx, task := range tasks {
		submitted := cc.pool.submit(func() {
			outcomes <- metricOutcome{index: idx, families: task.run()}
		})
		if !submitted {
			outcomes <- metricOutcome{index: idx, families: task.fallback()}
		}
	}

	results := make([][]common.MetricFamily, len(tasks))
	for i := 0; i < len(tasks); i++ {
		outcome := <-outcomes
		results[outcome.index] = outcome.families
	}

	families := make([]common.MetricFamily, 0, len(tasks)*2)
	for _, result := range results {
		families = append(families, result...)
	}

	return families
}

func (cc *cloudCollector) createMetricTasks(ctx context.Context, infos map[info.ResourceType]common.InfoResult) []metricTask {
	tasks := make([]metricTask, 0)
	for _, namespace := range cc.config.Namespaces() {
		if namespace == PerformanceNamespace {
			rds := infos[info.RDS]
			tasks = append(tasks, metricTask{
				run: func() []common.MetricFamily {
					return cc.collectPerformance(ctx, rds)
				},
				fallback: func() []common.MetricFamily {
					return performanceFallback(cc)
				},
			})
			continue
		}

		nsCfg := cc.config.Metrics[namespace]
		var extra *config.ExtraLabelSpec
		var infoResult common.InfoResult
		if nsCfg.ExtraLabels.IsSet() {
			extra = nsCfg.ExtraLabels
			rt, err := info.ParseResourceType(extra.FromInfo)
			if err == nil {
				infoResult = infos[rt]
			}
		}

		for _, spec := range nsCfg.Metrics {
			familyName := FamilyName(namespace, spec.EffectiveName())
			tasks = append(tasks, metricTask{
				run: func() []common.MetricFamily {
					return cc.collectMetric(ctx, namespace, spec, extra, infoResult)
				},
				fallback: func() []common.MetricFamily {
					return []common.MetricFamily{UpFamily(familyName, false)}
				},
			})
		}
	}

	return tasks
}

// collectMetric returns the metric family and its up=1 sentinel, or only the up=0 sentinel on failure
func (cc *cloudCollector) collectMetric(
	ctx context.Context,
	namespace string,
	spec config.MetricSpec,
	extra *config.ExtraLabelSpec,
	infoResult common.InfoResult,
) []common.MetricFamily {
	familyName := FamilyName(namespace, spec.EffectiveName())

	points, err := cc.fetchDatapoints(ctx, namespace, spec)
	if err != nil {
		log.Warn("metric fetch failed", "namespace", namespace, "metric", spec.Name, "error", err)
		return []common.MetricFamily{UpFamily(familyName, false)}
	}
	if len(points) == 0 {
		log.Debug("metric returned no datapoints", "namespace", namespace, "metric", spec.Name)
		return []common.MetricFamily{UpFamily(familyName, false)}
	}

	var extraNames []string
	var labeler extraLabeler
	if extra != nil {
		extraNames = extra.Labels.Names()
		labeler = cc.joinTable(labelKeys(points[0]), infoResult, *extra)
	}

	family, err := assembleFamily(namespace, spec, points, extraNames, labeler)
	if err != nil {
		log.Error("metric assembly failed", "namespace", namespace, "metric", spec.Name, "error", err)
		return []common.MetricFamily{UpFamily(familyName, false)}
	}

	return []common.MetricFamily{family, UpFamily(familyName, true)}
}

func (cc *cloudCollector) fetchDatapoints(ctx context.Context, namespace string, spec config.MetricSpec) ([]common.DataPoint, error) {
	ttl := cache.MetricTTL(spec.EffectivePeriod())
	return cc.datapointCache.GetOrFetch(datapointsCacheKey(namespace, spec), ttl, func() ([]common.DataPoint, error) {
		req := metricRequest(namespace, spec, cc.config.Credential.RegionID)
		body, err := cc.client.Fetch(ctx, namespace, req)
		if err != nil {
			return nil, err
		}

		points, err := parseDatapoints(body)
		if err != nil {
			return nil, &client.FetchError{
				Namespace: namespace,
				Subject:   spec.Name,
				Action:    req.Name(),
				Err:       err,
			}
		}

		return points, nil
	})
}

// joinTable returns the shared table for the join declaration. Without metadata every lookup misses
// and nothing is cached, so the table is rebuilt once metadata becomes available. A cached table
// never outlives the metadata listing it was built from.
func (cc *cloudCollector) joinTable(pointKeys []string, infoResult common.InfoResult, extra config.ExtraLabelSpec) extraLabeler {
	if len(infoResult.Labels) == 0 {
		return emptyLabels(len(extra.Labels))
	}

	ttl := cc.joinTTL
	if !infoResult.FetchedAt.IsZero() {
		ttl = infoResult.FetchedAt.Add(cc.joinTTL).Sub(cc.now())
	}
	if ttl <= 0 {
		return join.BuildTable(pointKeys, infoResult, extra)
	}

	signature := join.Signature(pointKeys, extra, infoResult)
	table, err := cc.joinCache.GetOrFetch(signature, ttl, func() (*join.Table, error) {
		return join.BuildTable(pointKeys, infoResult, extra), nil
	})
	if err != nil {
		return emptyLabels(len(extra.Labels))
	}

	return table
}

// Close stops the worker pool. Collect calls made afterwards only yield failure sentinels.
func (cc *cloudCollector) Close() error {
	cc.pool.close()
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (cc *cloudCollector) IsInterfaceNil() bool {
	return cc == nil
}
