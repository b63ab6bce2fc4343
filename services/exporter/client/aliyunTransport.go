package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("client")

const connectTimeout = 5 * time.Second

// ArgsAliyunTransport holds the arguments needed to create the Alibaba Cloud transport
type ArgsAliyunTransport struct {
	AccessKeyID     string
	AccessKeySecret string
	DefaultRegionID string
	Protocol        string
	Timeout         time.Duration
}

// aliyunTransport signs and sends requests through the Alibaba Cloud SDK, one authenticated client per region
type aliyunTransport struct {
	args    ArgsAliyunTransport
	mut     sync.Mutex
	clients map[string]*sdk.Client
}

// NewAliyunTransport creates a new SDK backed transport
func NewAliyunTransport(args ArgsAliyunTransport) (*aliyunTransport, error) {
	if len(args.AccessKeyID) == 0 || len(args.AccessKeySecret) == 0 {
		return nil, errors.New("empty access key")
	}
	if len(args.DefaultRegionID) == 0 {
		return nil, errors.New("empty default region")
	}
	if len(args.Protocol) == 0 {
		args.Protocol = "http"
	}

	return &aliyunTransport{
		args:    args,
		clients: make(map[string]*sdk.Client),
	}, nil
}

func (t *aliyunTransport) clientFor(regionID string) (*sdk.Client, error) {
	t.mut.Lock()
	defer t.mut.Unlock()

	c, found := t.clients[regionID]
	if found {
		return c, nil
	}

	c, err := sdk.NewClientWithAccessKey(regionID, t.args.AccessKeyID, t.args.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for region %s: %w", regionID, err)
	}

	log.Debug("created cloud API client", "region", regionID)
	t.clients[regionID] = c

	return c, nil
}

// Do sends the request and returns the raw response body
func (t *aliyunTransport) Do(ctx context.Context, req Request) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	regionID := req.RegionID
	if len(regionID) == 0 {
		regionID = t.args.DefaultRegionID
	}

	c, err := t.clientFor(regionID)
	if err != nil {
		return nil, err
	}

	resp, err := c.ProcessCommonRequest(t.buildRequest(req, regionID))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errStatusNotOK(resp.GetHttpStatus())
	}

	return resp.GetHttpContentBytes(), nil
}

func (t *aliyunTransport) buildRequest(req Request, regionID string) *requests.CommonRequest {
	commonRequest := requests.NewCommonRequest()
	commonRequest.Scheme = t.args.Protocol
	commonRequest.Domain = req.Domain
	commonRequest.Version = req.Version
	commonRequest.Method = req.Method
	if len(commonRequest.Method) == 0 {
		commonRequest.Method = http.MethodPost
	}

	if len(req.PathPattern) > 0 {
		commonRequest.PathPattern = req.PathPattern
		commonRequest.Headers["Content-Type"] = "application/json"
	} else {
		commonRequest.ApiName = req.Action
		commonRequest.QueryParams["RegionId"] = regionID
	}

	for key, value := range req.Params {
		commonRequest.QueryParams[key] = value
	}
	if len(req.Body) > 0 {
		commonRequest.SetContent(req.Body)
	}

	if t.args.Timeout > 0 {
		commonRequest.SetReadTimeout(t.args.Timeout)
	}
	commonRequest.SetConnectTimeout(connectTimeout)

	return commonRequest
}

// Close releases every regional client
func (t *aliyunTransport) Close() error {
	t.mut.Lock()
	defer t.mut.Unlock()

	for regionID, c := range t.clients {
		c.Shutdown()
		delete(t.clients, regionID)
	}

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (t *aliyunTransport) IsInterfaceNil() bool {
	return t == nil
}
