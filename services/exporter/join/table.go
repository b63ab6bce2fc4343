package join

import (
	"strconv"
	"strings"

	"github.com/iulianpascalau/aliyun-exporter/services/exporter/common"
	"github.com/iulianpascalau/aliyun-exporter/services/exporter/config"
)

const keySeparator = ","

// Table maps a joined datapoint key onto the extra label values taken from one metadata record
type Table struct {
	pointFields []string
	values      map[string][]string
	width       int
}

// BuildTable indexes the metadata records by the fields bound in spec.Keys. Only the datapoint fields
// present in pointKeys take part in the key, in pointKeys order. When several records share a key,
// the last one wins. Without any bound field in pointKeys the table is empty and every lookup misses.
func BuildTable(pointKeys []string, info common.InfoResult, spec config.ExtraLabelSpec) *Table {
	table := &Table{
		pointFields: make([]string, 0, len(spec.Keys)),
		values:      make(map[string][]string, len(info.Records)),
		width:       len(spec.Labels),
	}

	infoFields := make([]string, 0, len(spec.Keys))
	for _, pointKey := range pointKeys {
		infoField, found := spec.Keys.InfoField(pointKey)
		if !found {
			continue
		}

		table.pointFields = append(table.pointFields, pointKey)
		infoFields = append(infoFields, infoField)
	}

	if len(table.pointFields) == 0 {
		return table
	}

	for _, record := range info.Records {
		keyParts := make([]string, 0, len(infoFields))
		for _, field := range infoFields {
			keyParts = append(keyParts, record[field])
		}

		labelValues := make([]string, 0, table.width)
		for _, ref := range spec.Labels {
			labelValues = append(labelValues, record[ref.Source])
		}

		table.values[strings.Join(keyParts, keySeparator)] = labelValues
	}

	return table
}

// Lookup returns the extra label values for the datapoint. A miss, including a datapoint lacking one
// of the bound fields, yields empty strings.
func (t *Table) Lookup(dp common.DataPoint) []string {
	if len(t.values) == 0 {
		return make([]string, t.width)
	}

	keyParts := make([]string, 0, len(t.pointFields))
	for _, field := range t.pointFields {
		value, found := dp.Get(field)
		if !found {
			return make([]string, t.width)
		}
		keyParts = append(keyParts, value.String())
	}

	labelValues, found := t.values[strings.Join(keyParts, keySeparator)]
	if !found {
		return make([]string, t.width)
	}

	result := make([]string, len(labelValues))
	copy(result, labelValues)

	return result
}

// Len returns the number of distinct keys in the table
func (t *Table) Len() int {
	return len(t.values)
}

// Signature identifies the tables that can be shared: same resource, same join declaration, same
// datapoint key set and same metadata listing (record count and fetch time)
func Signature(pointKeys []string, spec config.ExtraLabelSpec, info common.InfoResult) string {
	keys := make([]string, 0, len(spec.Keys))
	for _, key := range spec.Keys {
		keys = append(keys, key.Point+"="+key.Info)
	}
	labels := make([]string, 0, len(spec.Labels))
	for _, ref := range spec.Labels {
		labels = append(labels, ref.Source+"="+ref.Name())
	}

	return strings.Join([]string{
		spec.FromInfo,
		strings.Join(keys, keySeparator),
		strings.Join(labels, keySeparator),
		strings.Join(pointKeys, keySeparator),
		listingVersion(info),
	}, "|")
}

func listingVersion(info common.InfoResult) string {
	fetchedAt := int64(0)
	if !info.FetchedAt.IsZero() {
		fetchedAt = info.FetchedAt.UnixNano()
	}

	return strconv.Itoa(len(info.Records)) + "@" + strconv.FormatInt(fetchedAt, 10)
}
