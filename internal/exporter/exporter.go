package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/railscope/railscope/internal/railway"
)

// serviceLabels identify a service instance on every per-service gauge.
var serviceLabels = []string{"project_name", "service_name", "environment_name"}

// MetricsClient abstracts the Railway API methods the exporter needs.
type MetricsClient interface {
	Services(ctx context.Context, environmentID string) ([]railway.ServiceInstance, error)
	ServiceMetrics(ctx context.Context, serviceID, environmentID string, since time.Time) (railway.ResourceUsage, error)
}

// Exporter polls Railway for per-service resource usage and serves the
// latest values as Prometheus gauges. All metrics live in a private
// registry so the process never collides with other users of the
// global one.
type Exporter struct {
	cfg      Config
	client   MetricsClient
	projects []railway.Project
	logger   *slog.Logger

	registry *prometheus.Registry
	server   *http.Server

	cpuUsage       *prometheus.GaugeVec
	memoryUsage    *prometheus.GaugeVec
	cpuUtil        *prometheus.GaugeVec
	memoryUtil     *prometheus.GaugeVec
	networkRx      *prometheus.GaugeVec
	networkTx      *prometheus.GaugeVec
	serviceUp      *prometheus.GaugeVec
	servicesTotal  *prometheus.GaugeVec
	scrapeDuration prometheus.Gauge
	scrapeErrors   prometheus.Gauge
	buildInfo      *prometheus.GaugeVec

	cycles int
}

// NewExporter creates a new Exporter. Config defaults are applied
// automatically.
func NewExporter(cfg Config, client MetricsClient, projects []railway.Project, version string, logger *slog.Logger) *Exporter {
	cfg.ApplyDefaults()

	e := &Exporter{
		cfg:      cfg,
		client:   client,
		projects: projects,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	e.cpuUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_cpu_usage",
		Help:      "CPU cores used",
	}, serviceLabels)
	e.memoryUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_memory_usage_gb",
		Help:      "Memory usage in GB",
	}, serviceLabels)
	e.cpuUtil = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_cpu_utilization",
		Help:      "CPU utilization (0-1)",
	}, serviceLabels)
	e.memoryUtil = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_memory_utilization",
		Help:      "Memory utilization (0-1)",
	}, serviceLabels)
	e.networkRx = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_network_rx_gb_total",
		Help:      "Network received in GB",
	}, serviceLabels)
	e.networkTx = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_network_tx_gb_total",
		Help:      "Network transmitted in GB",
	}, serviceLabels)
	e.serviceUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "service_up",
		Help:      "Service is running (1) or not (0)",
	}, serviceLabels)
	e.servicesTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway",
		Name:      "services_total",
		Help:      "Total number of services",
	}, []string{"project_name"})
	e.scrapeDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "railway_exporter",
		Name:      "scrape_duration_seconds",
		Help:      "Time taken to scrape metrics",
	})
	e.scrapeErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "railway_exporter",
		Name:      "scrape_errors",
		Help:      "Number of errors in the last collection cycle",
	})
	e.buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "railway_exporter",
		Name:      "build_info",
		Help:      "Exporter build information",
	}, []string{"version"})

	e.registry.MustRegister(
		e.cpuUsage, e.memoryUsage, e.cpuUtil, e.memoryUtil,
		e.networkRx, e.networkTx, e.serviceUp, e.servicesTotal,
		e.scrapeDuration, e.scrapeErrors, e.buildInfo,
	)
	e.buildInfo.WithLabelValues(version).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	e.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return e
}

// Run collects immediately, then once per ScrapeInterval until ctx is
// cancelled. The interval is measured from the end of a cycle, so a
// slow upstream never causes overlapping cycles.
func (e *Exporter) Run(ctx context.Context) error {
	e.logger.Info("exporter started",
		"component", "exporter",
		"projects", len(e.projects),
		"scrape_interval", e.cfg.ScrapeInterval,
	)
	for {
		e.Collect(ctx)
		select {
		case <-ctx.Done():
			e.logger.Info("exporter stopped", "component", "exporter")
			return ctx.Err()
		case <-time.After(e.cfg.ScrapeInterval):
		}
	}
}

// Collect runs one collection cycle over all configured projects and
// updates the gauges. Failures never abort the cycle: an unreadable
// project zeroes its services_total, an unreadable service zeroes its
// usage gauges, and both count into the scrape_errors gauge.
func (e *Exporter) Collect(ctx context.Context) {
	start := time.Now()
	e.cycles++
	var errs int

	for _, project := range e.projects {
		services, err := e.client.Services(ctx, project.EnvironmentID)
		if err != nil {
			errs++
			e.servicesTotal.WithLabelValues(project.Name).Set(0)
			if ctx.Err() == nil {
				e.logger.Warn("service enumeration failed",
					"component", "exporter",
					"project", project.Name,
					"error", err,
				)
			}
			continue
		}
		e.servicesTotal.WithLabelValues(project.Name).Set(float64(len(services)))

		for _, inst := range services {
			labels := []string{project.Name, inst.ServiceName, project.EnvironmentName}

			up := 0.0
			if inst.DeploymentStatus == "SUCCESS" {
				up = 1
			}
			e.serviceUp.WithLabelValues(labels...).Set(up)

			since := time.Now().Add(-e.cfg.SampleWindow)
			usage, err := e.client.ServiceMetrics(ctx, inst.ServiceID, project.EnvironmentID, since)
			if err != nil {
				errs++
				if ctx.Err() == nil {
					e.logger.Warn("metrics fetch failed",
						"component", "exporter",
						"project", project.Name,
						"service", inst.ServiceName,
						"error", err,
					)
				}
				usage = railway.ResourceUsage{}
			}

			e.cpuUsage.WithLabelValues(labels...).Set(usage.CPUCores)
			e.memoryUsage.WithLabelValues(labels...).Set(usage.MemoryGB)
			e.cpuUtil.WithLabelValues(labels...).Set(utilization(usage.CPUCores, e.cfg.CPULimitCores))
			e.memoryUtil.WithLabelValues(labels...).Set(utilization(usage.MemoryGB, e.cfg.MemoryLimitGB))
			e.networkRx.WithLabelValues(labels...).Set(usage.NetworkRxGB)
			e.networkTx.WithLabelValues(labels...).Set(usage.NetworkTxGB)
		}
	}

	elapsed := time.Since(start)
	e.scrapeDuration.Set(elapsed.Seconds())
	e.scrapeErrors.Set(float64(errs))
	e.logger.Info("collection completed",
		"component", "exporter",
		"cycle", e.cycles,
		"projects", len(e.projects),
		"errors", errs,
		"duration", elapsed,
	)
}

// Serve runs the metrics HTTP server until Shutdown or a listener error.
func (e *Exporter) Serve() error { return e.server.ListenAndServe() }

// Shutdown gracefully drains the metrics HTTP server.
func (e *Exporter) Shutdown(ctx context.Context) error { return e.server.Shutdown(ctx) }

// utilization maps usage against its allocation to a 0..1 ratio. Usage
// above the allocation clamps to 1 so dashboards stay bounded.
func utilization(usage, limit float64) float64 {
	if usage <= 0 {
		return 0
	}
	return min(usage/limit, 1)
}
