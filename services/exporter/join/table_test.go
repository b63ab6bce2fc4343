package join

import (
	"testing"
	"time"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func point(fields ...string) common.DataPoint {
	dp := common.DataPoint{}
	for i := 0; i+1 < len(fields); i += 2 {
		dp.Fields = append(dp.Fields, common.Field{
			Name:  fields[i],
			Value: gjson.Parse(fields[i+1]),
		})
	}

	return dp
}

func TestBuildTable_ZoneByInstance(t *testing.T) {
	t.Parallel()

	info := common.InfoResult{
		Labels: []string{"instanceId", "zone"},
		Records: []common.InfoRecord{
			{"instanceId": "i-1", "zone": "cn-1"},
		},
	}
	spec := config.ExtraLabelSpec{
		FromInfo: "ecs",
		Labels:   config.LabelRefs{{Source: "zone"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "instanceId"}},
	}

	table := BuildTable([]string{"instanceId"}, info, spec)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"cn-1"}, table.Lookup(point("instanceId", `"i-1"`, "Average", "3.5")))
	assert.Equal(t, []string{""}, table.Lookup(point("instanceId", `"i-2"`, "Average", "1")))
}

func TestBuildTable_RenamedKeysAndLabels(t *testing.T) {
	t.Parallel()

	info := common.InfoResult{
		Records: []common.InfoRecord{
			{"InstanceId": "i-1", "RegionId": "cn-hangzhou", "InstanceName": "web", "ZoneId": "b"},
			{"InstanceId": "i-2", "RegionId": "cn-hangzhou", "InstanceName": "db", "ZoneId": "c"},
			{"InstanceId": "i-2", "RegionId": "cn-shanghai", "InstanceName": "cache", "ZoneId": "d"},
		},
	}
	spec := config.ExtraLabelSpec{
		FromInfo: "ecs",
		Labels: config.LabelRefs{
			{Source: "InstanceName", Target: "instance_name"},
			{Source: "ZoneId"},
		},
		Keys: config.JoinKeys{
			{Point: "instanceId", Info: "InstanceId"},
			{Point: "regionId", Info: "RegionId"},
		},
	}

	// datapoint field order drives the key order, unrelated fields are ignored
	table := BuildTable([]string{"userId", "regionId", "instanceId", "device"}, info, spec)
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, []string{"db", "c"}, table.Lookup(point("regionId", `"cn-hangzhou"`, "instanceId", `"i-2"`, "device", `"/dev/vda1"`)))
	assert.Equal(t, []string{"cache", "d"}, table.Lookup(point("regionId", `"cn-shanghai"`, "instanceId", `"i-2"`)))
	assert.Equal(t, []string{"", ""}, table.Lookup(point("regionId", `"cn-beijing"`, "instanceId", `"i-2"`)))
	assert.Equal(t, []string{"", ""}, table.Lookup(point("instanceId", `"i-1"`)))
}

func TestBuildTable_DuplicateKeysLastWins(t *testing.T) {
	t.Parallel()

	info := common.InfoResult{
		Records: []common.InfoRecord{
			{"id": "x", "name": "first"},
			{"id": "x", "name": "second"},
		},
	}
	spec := config.ExtraLabelSpec{
		FromInfo: "rds",
		Labels:   config.LabelRefs{{Source: "name"}, {Source: "missing"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "id"}},
	}

	table := BuildTable([]string{"instanceId"}, info, spec)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"second", ""}, table.Lookup(point("instanceId", `"x"`)))
}

func TestTable_LookupReturnsCopy(t *testing.T) {
	t.Parallel()

	spec := config.ExtraLabelSpec{
		FromInfo: "rds",
		Labels:   config.LabelRefs{{Source: "name"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "id"}},
	}
	table := BuildTable([]string{"instanceId"}, common.InfoResult{Records: []common.InfoRecord{{"id": "x", "name": "n"}}}, spec)

	values := table.Lookup(point("instanceId", `"x"`))
	values[0] = "changed"
	assert.Equal(t, []string{"n"}, table.Lookup(point("instanceId", `"x"`)))
}

func TestSignature(t *testing.T) {
	t.Parallel()

	spec := config.ExtraLabelSpec{
		FromInfo: "ecs",
		Labels:   config.LabelRefs{{Source: "InstanceName", Target: "name"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "InstanceId"}},
	}

	fetchedAt := time.Unix(1700000000, 0)
	info := common.InfoResult{
		Records:   []common.InfoRecord{{"InstanceId": "i-1"}},
		FetchedAt: fetchedAt,
	}

	first := Signature([]string{"instanceId"}, spec, info)
	assert.Equal(t, first, Signature([]string{"instanceId"}, spec, info))
	assert.NotEqual(t, first, Signature([]string{"instanceId", "device"}, spec, info))

	other := spec
	other.FromInfo = "rds"
	assert.NotEqual(t, first, Signature([]string{"instanceId"}, other, info))

	refreshed := info
	refreshed.FetchedAt = fetchedAt.Add(time.Hour)
	assert.NotEqual(t, first, Signature([]string{"instanceId"}, spec, refreshed))

	grown := info
	grown.Records = append([]common.InfoRecord{{"InstanceId": "i-2"}}, info.Records...)
	assert.NotEqual(t, first, Signature([]string{"instanceId"}, spec, grown))

	assert.NotEmpty(t, Signature([]string{"instanceId"}, spec, common.InfoResult{}))
}

func TestBuildTable_NoBoundFieldInDatapoints(t *testing.T) {
	t.Parallel()

	info := common.InfoResult{
		Records: []common.InfoRecord{
			{"InstanceId": "i-1", "ZoneId": "cn-1"},
			{"InstanceId": "i-2", "ZoneId": "cn-2"},
		},
	}
	spec := config.ExtraLabelSpec{
		FromInfo: "ecs",
		Labels:   config.LabelRefs{{Source: "ZoneId"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "InstanceId"}},
	}

	table := BuildTable([]string{"userId2", "device"}, info, spec)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []string{""}, table.Lookup(point("device", `"vda"`)))
	assert.Equal(t, []string{""}, table.Lookup(point("device", `"vda"`, "instanceId", `"i-1"`)))
}

func TestTable_DatapointLackingBoundField(t *testing.T) {
	t.Parallel()

	info := common.InfoResult{
		Records: []common.InfoRecord{
			{"InstanceId": "i-1", "ZoneId": "cn-1"},
			{"ZoneId": "cn-9"},
		},
	}
	spec := config.ExtraLabelSpec{
		FromInfo: "ecs",
		Labels:   config.LabelRefs{{Source: "ZoneId"}},
		Keys:     config.JoinKeys{{Point: "instanceId", Info: "InstanceId"}},
	}

	table := BuildTable([]string{"instanceId"}, info, spec)
	assert.Equal(t, []string{"cn-1"}, table.Lookup(point("instanceId", `"i-1"`)))
	// the record without InstanceId must not match points without instanceId
	assert.Equal(t, []string{""}, table.Lookup(point("device", `"vda"`)))
}
