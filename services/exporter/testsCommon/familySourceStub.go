package testsCommon

import (
	"context"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
)

// FamilySourceStub -
type FamilySourceStub struct {
	CollectHandler func(ctx context.Context) []common.MetricFamily
}

// Collect -
func (stub *FamilySourceStub) Collect(ctx context.Context) []common.MetricFamily {
	if stub.CollectHandler != nil {
		return stub.CollectHandler(ctx)
	}

	return nil
}

// IsInterfaceNil -
func (stub *FamilySourceStub) IsInterfaceNil() bool {
	return stub == nil
}
