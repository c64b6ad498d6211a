// Package metrics collects Prometheus metrics for HTTP traffic and story
// activity and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"storyreel/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	httpStatus       *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	storiesCreated   prometheus.Counter
	engagement       *prometheus.CounterVec
	videoLookupFails prometheus.Counter
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyreel_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_stories_created_total",
			Help: "Stories stored by batch creation.",
		}),
		engagement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_engagement_total",
			Help: "Like and bookmark membership changes.",
		}, []string{"kind", "action"}),
		videoLookupFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_video_lookup_fail_total",
			Help: "Video duration lookups that failed.",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.storiesCreated,
		c.engagement,
		c.videoLookupFails,
	)

	return c
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// ObserveRequest records latency under the matched route pattern, not the raw
// path, to keep label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, d time.Duration) {
	c.requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordStoriesCreated(n int) {
	c.storiesCreated.Add(float64(n))
}

func (c *Collector) RecordEngagement(kind models.Engagement, active bool) {
	action := "remove"
	if active {
		action = "add"
	}
	c.engagement.WithLabelValues(string(kind), action).Inc()
}

func (c *Collector) RecordVideoLookupFailure() {
	c.videoLookupFails.Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
