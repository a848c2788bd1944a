// Package metrics provides Prometheus metrics for the oracle system.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetchesTotal counts verifier runs by outcome.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_source_fetches_total",
			Help: "Total number of oracle network fetches by result",
		},
		[]string{"source", "status"},
	)

	// ObservationsTotal counts price observations produced by sources.
	ObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_observations_total",
			Help: "Price observations produced by sources",
		},
		[]string{"source", "asset", "status"},
	)

	// ObservationStalenessSeconds tracks the age of the last observation per source and asset.
	ObservationStalenessSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_observation_staleness_seconds",
			Help: "Age of the carried publish time when the observation was verified",
		},
		[]string{"source", "asset"},
	)

	// GuardianSignaturesTotal counts Pyth guardian signature checks.
	GuardianSignaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_guardian_signatures_total",
			Help: "Guardian signatures checked, by result",
		},
		[]string{"result"},
	)

	// AggregationDuration is a histogram of price aggregation duration.
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ConsensusPrice is the last consensus price per asset.
	ConsensusPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_consensus_price",
			Help: "Last consensus price per asset",
		},
		[]string{"asset"},
	)

	// AssetsOmittedTotal counts assets left out of a commitment.
	AssetsOmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_assets_omitted_total",
			Help: "Assets omitted from a commitment for lack of valid observations",
		},
		[]string{"asset"},
	)

	// TickDuration is a histogram of full tick durations.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_tick_duration_seconds",
			Help:    "Duration of a signing tick",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	// TicksTotal counts ticks by outcome.
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_ticks_total",
			Help: "Signing ticks by result",
		},
		[]string{"status"},
	)

	// CommitmentTimestamp is the timestamp of the last signed commitment.
	CommitmentTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_commitment_timestamp",
			Help: "Unix timestamp of the last signed commitment",
		},
	)

	// ChainRequestsTotal counts get-method calls per endpoint.
	ChainRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_chain_requests_total",
			Help: "Total number of chain get-method requests",
		},
		[]string{"endpoint", "status"},
	)

	// ChainFailoversTotal is a counter of chain endpoint failovers.
	ChainFailoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_chain_failovers_total",
			Help: "Total number of chain endpoint failovers",
		},
	)

	// NotificationsTotal counts operator notifications by outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_notifications_total",
			Help: "Operator notifications by result",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SourceFetchesTotal,
			ObservationsTotal,
			ObservationStalenessSeconds,
			GuardianSignaturesTotal,
			AggregationDuration,
			ConsensusPrice,
			AssetsOmittedTotal,
			TickDuration,
			TicksTotal,
			CommitmentTimestamp,
			ChainRequestsTotal,
			ChainFailoversTotal,
			NotificationsTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records the outcome of one verifier run.
func RecordSourceFetch(source string, ok bool) {
	SourceFetchesTotal.WithLabelValues(source, status(ok)).Inc()
}

// RecordObservation records a single observation and its age.
func RecordObservation(source, asset string, valid bool, age time.Duration) {
	ObservationsTotal.WithLabelValues(source, asset, status(valid)).Inc()
	ObservationStalenessSeconds.WithLabelValues(source, asset).Set(age.Seconds())
}

// RecordGuardianSignature records one guardian signature check.
func RecordGuardianSignature(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	GuardianSignaturesTotal.WithLabelValues(result).Inc()
}

// RecordAggregation records a price aggregation operation.
func RecordAggregation(method string, duration time.Duration) {
	AggregationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordConsensusPrice records the consensus price for an asset.
func RecordConsensusPrice(asset string, price float64) {
	ConsensusPrice.WithLabelValues(asset).Set(price)
}

// RecordAssetOmitted records an asset missing from a commitment.
func RecordAssetOmitted(asset string) {
	AssetsOmittedTotal.WithLabelValues(asset).Inc()
}

// RecordTick records a finished tick.
func RecordTick(ok bool, duration time.Duration) {
	TicksTotal.WithLabelValues(status(ok)).Inc()
	TickDuration.Observe(duration.Seconds())
}

// RecordCommitment records the timestamp of a signed commitment.
func RecordCommitment(timestamp uint32) {
	CommitmentTimestamp.Set(float64(timestamp))
}

// RecordChainRequest records a get-method request.
func RecordChainRequest(endpoint string, ok bool) {
	ChainRequestsTotal.WithLabelValues(endpoint, status(ok)).Inc()
}

// RecordChainFailover records a chain endpoint failover event.
func RecordChainFailover() {
	ChainFailoversTotal.Inc()
}

// RecordNotification records a notification delivery attempt.
// status is one of "sent", "failed", "dropped".
func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
