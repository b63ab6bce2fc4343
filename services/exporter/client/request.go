package client

import (
	"fmt"
	"net/http"
)

// Request describes one upstream API call. RPC style calls set Action, ROA style calls set PathPattern.
type Request struct {
	Domain      string
	Version     string
	Action      string
	PathPattern string
	Method      string
	RegionID    string
	Params      map[string]string
	Body        []byte
}

// Name returns the action name used in logs and errors
func (r Request) Name() string {
	if len(r.Action) > 0 {
		return r.Action
	}

	return r.Method + " " + r.PathPattern
}

// Subject returns the most specific identifier carried in the request parameters
func (r Request) Subject() string {
	for _, key := range []string{"MetricName", "DBInstanceId", "Namespace"} {
		if value, found := r.Params[key]; found {
			return value
		}
	}

	return ""
}

// NewRPCRequest creates an RPC style request
func NewRPCRequest(domain string, version string, action string, regionID string, params map[string]string) Request {
	if params == nil {
		params = make(map[string]string)
	}

	return Request{
		Domain:   domain,
		Version:  version,
		Action:   action,
		Method:   http.MethodPost,
		RegionID: regionID,
		Params:   params,
	}
}

// NewROARequest creates a ROA style (RESTful) request
func NewROARequest(domain string, version string, method string, path string, regionID string, params map[string]string) Request {
	if params == nil {
		params = make(map[string]string)
	}

	return Request{
		Domain:      domain,
		Version:     version,
		PathPattern: path,
		Method:      method,
		RegionID:    regionID,
		Params:      params,
		Body:        []byte("{}"),
	}
}

// RegionalDomain returns the endpoint of a product served per region
func RegionalDomain(product string, regionID string) string {
	return fmt.Sprintf("%s.%s.aliyuncs.com", product, regionID)
}

// CentralDomain returns the endpoint of a product served from a single domain
func CentralDomain(product string) string {
	return fmt.Sprintf("%s.aliyuncs.com", product)
}
