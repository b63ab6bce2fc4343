package info

import (
	"context"
	"errors"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
)

var log = logger.GetOrCreate("info")

// PageSize is the number of records requested per page. A shorter page ends the listing.
const PageSize = 100

// ErrNilClient signals that a nil client has been provided
var ErrNilClient = errors.New("nil client")

// ErrNilCache signals that a nil cache has been provided
var ErrNilCache = errors.New("nil cache")

// ErrInvalidTTL signals a non-positive cache ttl
var ErrInvalidTTL = errors.New("invalid cache ttl")

// Client performs rate limited upstream calls
type Client interface {
	Fetch(ctx context.Context, namespace string, req client.Request) ([]byte, error)
	IsInterfaceNil() bool
}

// Cache memoizes listing results
type Cache interface {
	GetOrFetch(key string, ttl time.Duration, fetch func() (common.InfoResult, error)) (common.InfoResult, error)
	IsInterfaceNil() bool
}

// ArgsFetcher holds the arguments needed to create a metadata fetcher
type ArgsFetcher struct {
	Client Client
	Cache  Cache
	TTL    time.Duration
}

type fetcher struct {
	client Client
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewFetcher creates a paginated metadata fetcher whose results are cached for the provided ttl
func NewFetcher(args ArgsFetcher) (*fetcher, error) {
	if check.IfNil(args.Client) {
		return nil, ErrNilClient
	}
	if check.IfNil(args.Cache) {
		return nil, ErrNilCache
	}
	if args.TTL <= 0 {
		return nil, ErrInvalidTTL
	}

	return &fetcher{
		client: args.Client,
		cache:  args.Cache,
		ttl:    args.TTL,
		now:    time.Now,
	}, nil
}

// ListResources returns every resource of the given type in the given region, flattened into records
func (f *fetcher) ListResources(ctx context.Context, rt ResourceType, regionID string) (common.InfoResult, error) {
	key := rt.String() + "/" + regionID
	return f.cache.GetOrFetch(key, f.ttl, func() (common.InfoResult, error) {
		return f.list(ctx, rt, regionID)
	})
}

func (f *fetcher) list(ctx context.Context, rt ResourceType, regionID string) (common.InfoResult, error) {
	desc, err := rt.descriptor()
	if err != nil {
		return common.InfoResult{}, err
	}

	result := common.InfoResult{
		Name:        rt.FamilyName(),
		Resource:    rt.String(),
		Description: "Attributes of the " + rt.String() + " resources.",
	}

	for page := 1; ; page++ {
		req := desc.request(regionID, page)
		body, errFetch := f.client.Fetch(ctx, rt.Namespace(), req)
		if errFetch != nil {
			return common.InfoResult{}, errFetch
		}

		list := gjson.GetBytes(body, desc.listPath)
		if !list.Exists() {
			return common.InfoResult{}, &client.FetchError{
				Namespace: rt.Namespace(),
				Subject:   regionID,
				Action:    req.Name(),
				Err:       client.NewPathNotFoundError(desc.listPath),
			}
		}

		items := list.Array()
		for _, item := range items {
			fields := objectFields(item)
			if result.Labels == nil {
				result.Labels = labelKeys(item, desc.projections)
			}
			result.Records = append(result.Records, project(fields, result.Labels, desc.projections))
		}

		if len(items) < PageSize {
			break
		}
	}

	result.FetchedAt = f.now()
	log.Debug("listed resources", "resource", rt.String(), "region", regionID, "count", len(result.Records))

	return result, nil
}

func objectFields(item gjson.Result) map[string]gjson.Result {
	fields := make(map[string]gjson.Result)
	item.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})

	return fields
}

// labelKeys returns, in response order, the scalar fields and the explicitly projected ones
func labelKeys(item gjson.Result, projections map[string]string) []string {
	keys := make([]string, 0)
	item.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		_, projected := projections[name]
		if projected || isScalar(value) {
			keys = append(keys, name)
		}
		return true
	})

	return keys
}

func isScalar(value gjson.Result) bool {
	switch value.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return true
	default:
		return false
	}
}

// project maps a record onto the fixed label key set, missing values become empty strings
func project(fields map[string]gjson.Result, labels []string, projections map[string]string) common.InfoRecord {
	record := make(common.InfoRecord, len(labels))
	for _, label := range labels {
		value, found := fields[label]
		if !found {
			record[label] = ""
			continue
		}

		path, projected := projections[label]
		if projected {
			record[label] = value.Get(path).String()
			continue
		}
		if !isScalar(value) {
			record[label] = ""
			continue
		}

		record[label] = value.String()
	}

	return record
}

// IsInterfaceNil returns true if the value under the interface is nil
func (f *fetcher) IsInterfaceNil() bool {
	return f == nil
}
