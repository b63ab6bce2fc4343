package testsCommon

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/client"
)

// TransportStub -
type TransportStub struct {
	DoHandler    func(ctx context.Context, req client.Request) ([]byte, error)
	CloseHandler func() error
}

// Do -
func (stub *TransportStub) Do(ctx context.Context, req client.Request) ([]byte, error) {
	if stub.DoHandler != nil {
		return stub.DoHandler(ctx, req)
	}

	return []byte("{}"), nil
}

// Close -
func (stub *TransportStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *TransportStub) IsInterfaceNil() bool {
	return stub == nil
}
