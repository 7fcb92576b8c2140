package exporter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/railscope/railscope/internal/railway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockMetricsClient struct {
	mu           sync.Mutex
	services     map[string][]railway.ServiceInstance // environmentID -> instances
	servicesErr  map[string]error                     // environmentID -> error
	usage        map[string]railway.ResourceUsage     // serviceID -> usage
	usageErr     map[string]error                     // serviceID -> error
	sinces       []time.Time
	serviceCalls int
}

func (m *mockMetricsClient) Services(_ context.Context, environmentID string) ([]railway.ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceCalls++
	if err := m.servicesErr[environmentID]; err != nil {
		return nil, err
	}
	return m.services[environmentID], nil
}

func (m *mockMetricsClient) ServiceMetrics(_ context.Context, serviceID, _ string, since time.Time) (railway.ResourceUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinces = append(m.sinces, since)
	if err := m.usageErr[serviceID]; err != nil {
		return railway.ResourceUsage{}, err
	}
	return m.usage[serviceID], nil
}

func (m *mockMetricsClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serviceCalls
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// waitFor polls condition every 5ms until it returns true or the 2s
// deadline is reached. On timeout it calls t.Fatal with the message.
func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if condition() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func testProjects() []railway.Project {
	return []railway.Project{
		{Name: "tenantX", EnvironmentID: "env-x", EnvironmentName: "production"},
	}
}

func newTestExporter(client *mockMetricsClient, projects []railway.Project) *Exporter {
	cfg := Config{ScrapeInterval: time.Hour}
	return NewExporter(cfg, client, projects, "test", discardLogger())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestExporter_Collect_SetsServiceGauges(t *testing.T) {
	client := &mockMetricsClient{
		services: map[string][]railway.ServiceInstance{
			"env-x": {{ServiceID: "svc-1", ServiceName: "api", DeploymentID: "dep-1", DeploymentStatus: "SUCCESS"}},
		},
		usage: map[string]railway.ResourceUsage{
			"svc-1": {CPUCores: 0.5, MemoryGB: 1.0, NetworkRxGB: 10, NetworkTxGB: 20},
		},
	}
	e := newTestExporter(client, testProjects())

	e.Collect(context.Background())

	labels := []string{"tenantX", "api", "production"}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"cpu_usage", testutil.ToFloat64(e.cpuUsage.WithLabelValues(labels...)), 0.5},
		{"memory_usage_gb", testutil.ToFloat64(e.memoryUsage.WithLabelValues(labels...)), 1.0},
		{"cpu_utilization", testutil.ToFloat64(e.cpuUtil.WithLabelValues(labels...)), 0.25},
		{"memory_utilization", testutil.ToFloat64(e.memoryUtil.WithLabelValues(labels...)), 0.5},
		{"network_rx_gb_total", testutil.ToFloat64(e.networkRx.WithLabelValues(labels...)), 10},
		{"network_tx_gb_total", testutil.ToFloat64(e.networkTx.WithLabelValues(labels...)), 20},
		{"service_up", testutil.ToFloat64(e.serviceUp.WithLabelValues(labels...)), 1},
		{"services_total", testutil.ToFloat64(e.servicesTotal.WithLabelValues("tenantX")), 1},
		{"scrape_errors", testutil.ToFloat64(e.scrapeErrors), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExporter_Collect_UpReflectsDeploymentStatus(t *testing.T) {
	tests := []struct {
		status string
		want   float64
	}{
		{"SUCCESS", 1},
		{"CRASHED", 0},
		{"DEPLOYING", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run("status "+tt.status, func(t *testing.T) {
			client := &mockMetricsClient{
				services: map[string][]railway.ServiceInstance{
					"env-x": {{ServiceID: "svc-1", ServiceName: "api", DeploymentStatus: tt.status}},
				},
			}
			e := newTestExporter(client, testProjects())

			e.Collect(context.Background())

			got := testutil.ToFloat64(e.serviceUp.WithLabelValues("tenantX", "api", "production"))
			if got != tt.want {
				t.Errorf("service_up = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExporter_Collect_IsolatesEnumerationFailure(t *testing.T) {
	projects := []railway.Project{
		{Name: "broken", EnvironmentID: "env-bad", EnvironmentName: "production"},
		{Name: "healthy", EnvironmentID: "env-ok", EnvironmentName: "production"},
	}
	client := &mockMetricsClient{
		servicesErr: map[string]error{"env-bad": errors.New("HTTP 502")},
		services: map[string][]railway.ServiceInstance{
			"env-ok": {{ServiceID: "svc-1", ServiceName: "api", DeploymentStatus: "SUCCESS"}},
		},
		usage: map[string]railway.ResourceUsage{"svc-1": {CPUCores: 1}},
	}
	e := newTestExporter(client, projects)

	e.Collect(context.Background())

	if got := testutil.ToFloat64(e.servicesTotal.WithLabelValues("broken")); got != 0 {
		t.Errorf("services_total{broken} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(e.servicesTotal.WithLabelValues("healthy")); got != 1 {
		t.Errorf("services_total{healthy} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.cpuUsage.WithLabelValues("healthy", "api", "production")); got != 1 {
		t.Errorf("cpu_usage for the healthy project = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.scrapeErrors); got != 1 {
		t.Errorf("scrape_errors = %v, want 1", got)
	}
}

func TestExporter_Collect_MetricsFetchFailureZeroesUsage(t *testing.T) {
	client := &mockMetricsClient{
		services: map[string][]railway.ServiceInstance{
			"env-x": {{ServiceID: "svc-1", ServiceName: "api", DeploymentStatus: "SUCCESS"}},
		},
		usageErr: map[string]error{"svc-1": errors.New("timeout")},
	}
	e := newTestExporter(client, testProjects())

	e.Collect(context.Background())

	labels := []string{"tenantX", "api", "production"}
	if got := testutil.ToFloat64(e.cpuUsage.WithLabelValues(labels...)); got != 0 {
		t.Errorf("cpu_usage = %v, want 0", got)
	}
	if got := testutil.ToFloat64(e.memoryUtil.WithLabelValues(labels...)); got != 0 {
		t.Errorf("memory_utilization = %v, want 0", got)
	}
	// Status is known even when usage is not.
	if got := testutil.ToFloat64(e.serviceUp.WithLabelValues(labels...)); got != 1 {
		t.Errorf("service_up = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.scrapeErrors); got != 1 {
		t.Errorf("scrape_errors = %v, want 1", got)
	}
}

func TestExporter_Collect_UsesSampleWindow(t *testing.T) {
	client := &mockMetricsClient{
		services: map[string][]railway.ServiceInstance{
			"env-x": {{ServiceID: "svc-1", ServiceName: "api", DeploymentStatus: "SUCCESS"}},
		},
	}
	cfg := Config{ScrapeInterval: time.Hour, SampleWindow: 5 * time.Minute}
	e := NewExporter(cfg, client, testProjects(), "test", discardLogger())

	e.Collect(context.Background())

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.sinces) != 1 {
		t.Fatalf("metrics fetches = %d, want 1", len(client.sinces))
	}
	lookback := time.Since(client.sinces[0])
	if lookback < 5*time.Minute || lookback > 5*time.Minute+2*time.Second {
		t.Errorf("lookback = %v, want about 5m", lookback)
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		name  string
		usage float64
		limit float64
		want  float64
	}{
		{"zero usage", 0, 2, 0},
		{"negative usage", -1, 2, 0},
		{"half", 1, 2, 0.5},
		{"at limit", 2, 2, 1},
		{"above limit clamps", 5, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := utilization(tt.usage, tt.limit); got != tt.want {
				t.Errorf("utilization(%v, %v) = %v, want %v", tt.usage, tt.limit, got, tt.want)
			}
		})
	}
}

func TestExporter_MetricsEndpoint(t *testing.T) {
	client := &mockMetricsClient{
		services: map[string][]railway.ServiceInstance{
			"env-x": {{ServiceID: "svc-1", ServiceName: "api", DeploymentStatus: "SUCCESS"}},
		},
		usage: map[string]railway.ResourceUsage{"svc-1": {CPUCores: 0.5}},
	}
	e := NewExporter(Config{ScrapeInterval: time.Hour}, client, testProjects(), "1.2.3", discardLogger())
	e.Collect(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	wantLines := []string{
		`railway_service_cpu_usage{environment_name="production",project_name="tenantX",service_name="api"} 0.5`,
		`railway_service_up{environment_name="production",project_name="tenantX",service_name="api"} 1`,
		`railway_services_total{project_name="tenantX"} 1`,
		`railway_exporter_build_info{version="1.2.3"} 1`,
	}
	for _, line := range wantLines {
		if !strings.Contains(body, line) {
			t.Errorf("metrics output missing %q", line)
		}
	}
}

func TestExporter_HealthzEndpoint(t *testing.T) {
	e := newTestExporter(&mockMetricsClient{}, testProjects())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "ok")
	}
}

func TestExporter_Run_CollectsImmediately(t *testing.T) {
	client := &mockMetricsClient{
		services: map[string][]railway.ServiceInstance{"env-x": {}},
	}
	e := newTestExporter(client, testProjects())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, func() bool { return client.callCount() >= 1 }, "timed out waiting for the immediate first cycle")

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}
