package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestBuckets = []float64{.1, .25, .5, .75, 1, 2.5}

type requestHistograms struct {
	call  *prometheus.HistogramVec
	total *prometheus.HistogramVec
}

// NewRequestHistograms creates and registers the upstream latency histograms
func NewRequestHistograms(registerer prometheus.Registerer) (*requestHistograms, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	rh := &requestHistograms{
		call: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudmonitor_request_duration_seconds",
			Help:    "Upstream API call latency.",
			Buckets: requestBuckets,
		}, []string{"namespace", "limited"}),
		total: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudmonitor_request_wait_duration_seconds",
			Help:    "Upstream API call latency including the time spent waiting on the rate limiter.",
			Buckets: requestBuckets,
		}, []string{"namespace", "limited"}),
	}

	for _, collector := range []prometheus.Collector{rh.call, rh.total} {
		err := registerer.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("%w while registering the request histograms", err)
		}
	}

	return rh, nil
}

// ObserveRequest records the raw call latency and the latency including the limiter wait
func (rh *requestHistograms) ObserveRequest(namespace string, limited bool, call time.Duration, total time.Duration) {
	limitedLabel := strconv.FormatBool(limited)
	rh.call.WithLabelValues(namespace, limitedLabel).Observe(call.Seconds())
	rh.total.WithLabelValues(namespace, limitedLabel).Observe(total.Seconds())
}

// IsInterfaceNil returns true if the value under the interface is nil
func (rh *requestHistograms) IsInterfaceNil() bool {
	return rh == nil
}
