package common

import (
	"time"

	"github.com/tidwall/gjson"
)

// FamilyKind tells the exposition layer how a family's samples should be rendered
type FamilyKind int

const (
	// KindGauge is a plain gauge family
	KindGauge FamilyKind = iota
	// KindInfo is an info family: constant value 1, the payload lives in the labels
	KindInfo
)

// Field is a single named value of a datapoint
type Field struct {
	Name  string
	Value gjson.Result
}

// DataPoint holds the fields of one datapoint in the order the API returned them
type DataPoint struct {
	Fields []Field
}

// Get returns the field with the provided name
func (dp DataPoint) Get(name string) (gjson.Result, bool) {
	for _, f := range dp.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return gjson.Result{}, false
}

// Keys returns the field names in response order
func (dp DataPoint) Keys() []string {
	keys := make([]string, 0, len(dp.Fields))
	for _, f := range dp.Fields {
		keys = append(keys, f.Name)
	}

	return keys
}

// InfoRecord is the flattened label set of a single cloud resource
type InfoRecord map[string]string

// InfoResult is the outcome of listing one resource type
type InfoResult struct {
	Name        string
	Resource    string
	Description string
	Labels      []string
	Records     []InfoRecord
	// FetchedAt is the time of the upstream listing. Merged results keep the oldest one.
	FetchedAt time.Time
}

// Sample is one value of a metric family
type Sample struct {
	LabelValues []string
	Value       float64
	Timestamp   time.Time
}

// MetricFamily is the unit handed over to the scrape endpoint
type MetricFamily struct {
	Name    string
	Help    string
	Kind    FamilyKind
	Labels  []string
	Samples []Sample
}
