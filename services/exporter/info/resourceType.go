package info

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
)

// ResourceType enumerates the cloud resources whose attributes are exposed as metric labels
type ResourceType int

// Supported resource types
const (
	ECS ResourceType = iota
	RDS
	Redis
	SLB
	MongoDB
	Elasticsearch
	Logstash
)

var resourceNames = [...]string{
	ECS:           "ecs",
	RDS:           "rds",
	Redis:         "redis",
	SLB:           "slb",
	MongoDB:       "mongodb",
	Elasticsearch: "elasticsearch",
	Logstash:      "logstash",
}

// ParseResourceType returns the resource type with the provided configuration name
func ParseResourceType(name string) (ResourceType, error) {
	for idx, resourceName := range resourceNames {
		if resourceName == name {
			return ResourceType(idx), nil
		}
	}

	return 0, fmt.Errorf("unknown info resource %q", name)
}

// String returns the configuration name of the resource type
func (rt ResourceType) String() string {
	if rt < 0 || int(rt) >= len(resourceNames) {
		return "unknown"
	}

	return resourceNames[rt]
}

// FamilyName returns the name of the info family built from this resource
func (rt ResourceType) FamilyName() string {
	return "aliyun_meta_" + rt.String()
}

// Namespace returns the namespace label used when timing this resource's calls
func (rt ResourceType) Namespace() string {
	return rt.String() + "_info"
}

// descriptor holds how a resource list is requested and flattened
type descriptor struct {
	listPath string
	// top-level field -> path inside it of the value to expose
	projections map[string]string
	request     func(regionID string, page int) client.Request
}

func (rt ResourceType) descriptor() (descriptor, error) {
	switch rt {
	case ECS:
		return descriptor{
			listPath: "Instances.Instance",
			projections: map[string]string{
				"InnerIpAddress":  "IpAddress.0",
				"PublicIpAddress": "IpAddress.0",
				"VpcAttributes":   "PrivateIpAddress.IpAddress.0",
			},
			request: rpcPager(client.CentralDomain("ecs"), "2014-05-26", "DescribeInstances"),
		}, nil
	case RDS:
		return descriptor{
			listPath: "Items.DBInstance",
			request:  rpcPager(client.CentralDomain("rds"), "2014-08-15", "DescribeDBInstances"),
		}, nil
	case Redis:
		return descriptor{
			listPath: "Instances.KVStoreInstance",
			request:  rpcPager(client.CentralDomain("r-kvstore"), "2015-01-01", "DescribeInstances"),
		}, nil
	case SLB:
		return descriptor{
			listPath: "LoadBalancers.LoadBalancer",
			request:  rpcPager(client.CentralDomain("slb"), "2014-05-15", "DescribeLoadBalancers"),
		}, nil
	case MongoDB:
		return descriptor{
			listPath: "DBInstances.DBInstance",
			request:  rpcPager(client.CentralDomain("mongodb"), "2015-12-01", "DescribeDBInstances"),
		}, nil
	case Elasticsearch:
		return descriptor{
			listPath: "Result",
			request:  roaPager("/openapi/instances"),
		}, nil
	case Logstash:
		return descriptor{
			listPath: "Result",
			request:  roaPager("/openapi/logstashes"),
		}, nil
	default:
		return descriptor{}, fmt.Errorf("unknown info resource %d", int(rt))
	}
}

func rpcPager(domain string, version string, action string) func(regionID string, page int) client.Request {
	return func(regionID string, page int) client.Request {
		return client.NewRPCRequest(domain, version, action, regionID, map[string]string{
			"PageSize":   strconv.Itoa(PageSize),
			"PageNumber": strconv.Itoa(page),
		})
	}
}

func roaPager(path string) func(regionID string, page int) client.Request {
	return func(regionID string, page int) client.Request {
		domain := client.RegionalDomain("elasticsearch", regionID)
		return client.NewROARequest(domain, "2017-06-13", http.MethodGet, path, regionID, map[string]string{
			"size": strconv.Itoa(PageSize),
			"page": strconv.Itoa(page),
		})
	}
}
