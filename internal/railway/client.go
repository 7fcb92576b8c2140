// Package railway implements the client for Railway's GraphQL API:
// service enumeration, deployment log fetching, and resource metrics.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// userAgentPrefix is the User-Agent header prefix.
const userAgentPrefix = "railscope/"

// servicesQuery lists the services of one environment with their
// latest deployment.
const servicesQuery = `query($envId: String!) {
	environment(id: $envId) {
		serviceInstances { edges { node { serviceId serviceName latestDeployment { id status } } } }
	}
}`

// deploymentLogsQuery fetches the most recent log lines of one deployment.
const deploymentLogsQuery = `query($did: String!, $lim: Int!) {
	deploymentLogs(deploymentId: $did, limit: $lim) { message timestamp }
}`

// serviceMetricsQuery fetches resource measurement series for one service.
const serviceMetricsQuery = `query($serviceId: String!, $envId: String!, $startDate: DateTime!) {
	metrics(
		serviceId: $serviceId
		environmentId: $envId
		measurements: [CPU_USAGE, MEMORY_USAGE_GB, NETWORK_RX_GB, NETWORK_TX_GB]
		startDate: $startDate
	) {
		measurement
		values { ts value }
	}
}`

// Client is the Railway GraphQL API client. It holds no mutable state
// beyond the one-shot warnings; a single instance serves all polls.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	version    string
	logger     *slog.Logger

	warnAuthOnce sync.Once
	warnRateOnce sync.Once
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg Config, version string, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
		},
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		version:    version,
		logger:     logger,
	}, nil
}

// query POSTs a GraphQL document and decodes the data field into out.
// The three upstream failure shapes surface as distinct types:
// transport errors, *HTTPError for non-2xx, and *QueryError for a
// populated errors field.
func (c *Client) query(ctx context.Context, doc string, variables map[string]any, out any) error {
	data, err := json.Marshal(graphQLRequest{Query: doc, Variables: variables})
	if err != nil {
		return fmt.Errorf("railway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("railway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgentPrefix+c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("railway: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.warnAuthOnce.Do(func() {
				c.logger.Warn("Railway API rejected the token; check RAILWAY_API_TOKEN",
					"component", "railway",
				)
			})
		case http.StatusTooManyRequests:
			c.warnRateOnce.Do(func() {
				c.logger.Warn("Railway API rate limit hit; increase poll_interval or scrape_interval",
					"component", "railway",
				)
			})
		}
		return errorFromResponse(resp)
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("railway: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		qe := &QueryError{Messages: make([]string, 0, len(envelope.Errors))}
		for _, e := range envelope.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return qe
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("railway: decode data: %w", err)
		}
	}
	return nil
}

// Services lists the services of an environment with their latest
// deployment identifier and status.
func (c *Client) Services(ctx context.Context, environmentID string) ([]ServiceInstance, error) {
	var data environmentData
	err := c.query(ctx, servicesQuery, map[string]any{"envId": environmentID}, &data)
	if err != nil {
		return nil, err
	}

	edges := data.Environment.ServiceInstances.Edges
	instances := make([]ServiceInstance, 0, len(edges))
	for _, edge := range edges {
		inst := ServiceInstance{
			ServiceID:   edge.Node.ServiceID,
			ServiceName: edge.Node.ServiceName,
		}
		if dep := edge.Node.LatestDeployment; dep != nil {
			inst.DeploymentID = dep.ID
			inst.DeploymentStatus = dep.Status
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// DeploymentLogs fetches up to limit of the most recent log records of
// a deployment. Records come back in fetch order; consecutive calls
// return overlapping windows, which the dedup layer resolves.
func (c *Client) DeploymentLogs(ctx context.Context, deploymentID string, limit int) ([]LogRecord, error) {
	var data deploymentLogsData
	err := c.query(ctx, deploymentLogsQuery, map[string]any{"did": deploymentID, "lim": limit}, &data)
	if err != nil {
		return nil, err
	}
	return data.DeploymentLogs, nil
}

// ServiceMetrics fetches the resource measurements of a service since
// the given time and reduces each series to its latest sample.
func (c *Client) ServiceMetrics(ctx context.Context, serviceID, environmentID string, since time.Time) (ResourceUsage, error) {
	variables := map[string]any{
		"serviceId": serviceID,
		"envId":     environmentID,
		"startDate": since.UTC().Format(time.RFC3339),
	}
	var data metricsData
	if err := c.query(ctx, serviceMetricsQuery, variables, &data); err != nil {
		return ResourceUsage{}, err
	}

	var usage ResourceUsage
	for _, series := range data.Metrics {
		if len(series.Values) == 0 {
			continue
		}
		latest := series.Values[len(series.Values)-1].Value
		switch series.Measurement {
		case "CPU_USAGE":
			usage.CPUCores = latest
		case "MEMORY_USAGE_GB":
			usage.MemoryGB = latest
		case "NETWORK_RX_GB":
			usage.NetworkRxGB = latest
		case "NETWORK_TX_GB":
			usage.NetworkTxGB = latest
		}
	}
	return usage, nil
}
