package metrics

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIRetriesTotal    *prometheus.CounterVec
	APIErrorsTotal     *prometheus.CounterVec
	APIPagesFetched    *prometheus.CounterVec

	// Processing metrics
	RecordsProcessedTotal  *prometheus.CounterVec
	MatchesFoundTotal      *prometheus.CounterVec
	InvalidDomainsTotal    *prometheus.CounterVec
	WildcardsExpandedTotal *prometheus.CounterVec

	// Master list metrics
	MasterListDomains *prometheus.GaugeVec
	MasterListAdded   *prometheus.CounterVec

	// Pipeline metrics
	PipelineDuration *prometheus.HistogramVec
	PipelineActive   *prometheus.GaugeVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	buckets := []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

	m := &Metrics{
		// API metrics
		APIRequestsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_api_requests_total",
				Help: "Total number of Censys API requests",
			},
			[]string{"index", "status"},
		),
		APIRequestDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "censeek_api_request_duration_seconds",
				Help:    "Time spent on Censys API requests",
				Buckets: buckets,
			},
			[]string{"index"},
		),
		APIRetriesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_api_retries_total",
				Help: "Total number of retried API requests",
			},
			[]string{"index"},
		),
		APIErrorsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_api_errors_total",
				Help: "Total number of failed API requests",
			},
			[]string{"index", "error_type"},
		),
		APIPagesFetched: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_api_pages_fetched_total",
				Help: "Total number of result pages fetched",
			},
			[]string{"index"},
		),

		// Processing metrics
		RecordsProcessedTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_records_processed_total",
				Help: "Total number of API result records processed",
			},
			[]string{"kind"},
		),
		MatchesFoundTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_matches_found_total",
				Help: "Total number of hostname matches extracted",
			},
			[]string{"kind"},
		),
		InvalidDomainsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_invalid_domains_total",
				Help: "Total number of hostnames skipped as invalid",
			},
			[]string{"kind"},
		),
		WildcardsExpandedTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_wildcards_expanded_total",
				Help: "Total number of wildcard entries folded into base domains",
			},
			[]string{"kind"},
		),

		// Master list metrics
		MasterListDomains: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "censeek_masterlist_domains",
				Help: "Number of domains in the master list after an update",
			},
			[]string{"path"},
		),
		MasterListAdded: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "censeek_masterlist_added_total",
				Help: "Total number of new domains added to master lists",
			},
			[]string{"path"},
		),

		// Pipeline metrics
		PipelineDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "censeek_pipeline_duration_seconds",
				Help:    "End-to-end duration of discovery pipeline runs",
				Buckets: buckets,
			},
			[]string{"data_type"},
		),
		PipelineActive: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "censeek_pipeline_active",
				Help: "Number of discovery pipeline runs in flight",
			},
			[]string{"data_type"},
		),
	}

	return m
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	// Only start once
	var startErr error
	metricsInitialized.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		go func() {
			log.Printf("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return startErr
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		log.Println("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

// MeasureDuration is a helper to measure the duration of a function
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !metricsEnabled {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		histogram.With(labels).Observe(duration.Seconds())
	}
}
