package testsCommon

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
)

// ClientStub -
type ClientStub struct {
	FetchHandler func(ctx context.Context, namespace string, req client.Request) ([]byte, error)
}

// Fetch -
func (stub *ClientStub) Fetch(ctx context.Context, namespace string, req client.Request) ([]byte, error) {
	if stub.FetchHandler != nil {
		return stub.FetchHandler(ctx, namespace, req)
	}

	return []byte("{}"), nil
}

// IsInterfaceNil -
func (stub *ClientStub) IsInterfaceNil() bool {
	return stub == nil
}
