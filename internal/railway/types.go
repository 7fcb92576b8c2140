package railway

import "encoding/json"

// DefaultEnvironmentName is the environment label applied to projects
// that do not configure one.
const DefaultEnvironmentName = "production"

// Project identifies one Railway project environment to poll. Projects
// are configured statically; the pair (Name, EnvironmentID) is the
// tenant half of every source key.
type Project struct {
	// Name is the human-readable project name, used as the "project"
	// label on forwarded streams and exported metrics.
	Name string `yaml:"name"`

	// EnvironmentID is the Railway environment UUID to enumerate.
	EnvironmentID string `yaml:"environment"`

	// EnvironmentName is the environment label ("env" on streams,
	// "environment_name" on metrics). Default: "production".
	EnvironmentName string `yaml:"environment_name"`
}

// ServiceInstance is one service in an environment together with its
// latest deployment. DeploymentID is empty when the service has never
// been deployed.
type ServiceInstance struct {
	ServiceID        string
	ServiceName      string
	DeploymentID     string
	DeploymentStatus string
}

// LogRecord is a single deployment log line exactly as Railway returns
// it. The message may contain NUL bytes and surrounding whitespace;
// the timestamp is an ISO-8601 string that is not guaranteed to parse.
type LogRecord struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// ResourceUsage is the latest resource sample for one service. Values
// are zero for measurements Railway returned no samples for.
type ResourceUsage struct {
	CPUCores    float64
	MemoryGB    float64
	NetworkRxGB float64
	NetworkTxGB float64
}

// ---------------------------------------------------------------------------
// GraphQL wire shapes
// ---------------------------------------------------------------------------

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// environment(id) { serviceInstances { edges { node { ... } } } }

type environmentData struct {
	Environment struct {
		ServiceInstances struct {
			Edges []struct {
				Node struct {
					ServiceID        string `json:"serviceId"`
					ServiceName      string `json:"serviceName"`
					LatestDeployment *struct {
						ID     string `json:"id"`
						Status string `json:"status"`
					} `json:"latestDeployment"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"serviceInstances"`
	} `json:"environment"`
}

// deploymentLogs(deploymentId, limit) { message timestamp }

type deploymentLogsData struct {
	DeploymentLogs []LogRecord `json:"deploymentLogs"`
}

// metrics(serviceId, environmentId, measurements, startDate) { ... }

type metricsData struct {
	Metrics []measurementSeries `json:"metrics"`
}

type measurementSeries struct {
	Measurement string        `json:"measurement"`
	Values      []metricPoint `json:"values"`
}

type metricPoint struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}
