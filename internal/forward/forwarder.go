package forward

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/railscope/railscope/internal/dedup"
	"github.com/railscope/railscope/internal/loki"
	"github.com/railscope/railscope/internal/railway"
)

// UpstreamClient is the slice of the Railway API the forwarder needs.
type UpstreamClient interface {
	Services(ctx context.Context, environmentID string) ([]railway.ServiceInstance, error)
	DeploymentLogs(ctx context.Context, deploymentID string, limit int) ([]railway.LogRecord, error)
}

// LogPusher delivers built batches to the sink.
type LogPusher interface {
	Push(ctx context.Context, req loki.PushRequest) error
}

// Forwarder runs the poll cycle across all configured projects. It is
// strictly sequential: one upstream call in flight at a time, so the
// dedup window needs no locking.
type Forwarder struct {
	cfg      Config
	client   UpstreamClient
	window   *dedup.Window
	pusher   LogPusher
	projects []railway.Project
	logger   *slog.Logger

	cycles int
}

// NewForwarder creates a new Forwarder. Config defaults are applied
// automatically.
func NewForwarder(cfg Config, client UpstreamClient, window *dedup.Window, pusher LogPusher, projects []railway.Project, logger *slog.Logger) *Forwarder {
	cfg.ApplyDefaults()
	return &Forwarder{
		cfg:      cfg,
		client:   client,
		window:   window,
		pusher:   pusher,
		projects: projects,
		logger:   logger,
	}
}

// Run starts the poll loop and blocks until ctx is cancelled. The
// first cycle runs immediately; each later cycle starts PollInterval
// after the previous one finishes, so a slow cycle stretches the
// period instead of stacking up.
func (f *Forwarder) Run(ctx context.Context) error {
	f.logger.Info("forwarder started",
		"component", "forward",
		"projects", len(f.projects),
		"poll_interval", f.cfg.PollInterval,
		"fetch_limit", f.cfg.FetchLimit,
	)

	for {
		f.runCycle(ctx)

		select {
		case <-ctx.Done():
			f.logger.Info("forwarder stopped", "component", "forward")
			return ctx.Err()
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

// runCycle performs one pass over every project and service. A failure
// at any source is contained to that source: it is logged, counted,
// and the cycle moves on.
func (f *Forwarder) runCycle(ctx context.Context) {
	start := time.Now()
	f.cycles++

	var services, forwarded, failures int
	for _, project := range f.projects {
		instances, err := f.client.Services(ctx, project.EnvironmentID)
		if err != nil {
			failures++
			if ctx.Err() == nil {
				f.logger.Warn("service enumeration failed",
					"component", "forward",
					"project", project.Name,
					"error", err,
				)
			}
			continue
		}

		for _, inst := range instances {
			if inst.DeploymentID == "" {
				// Service exists but has never been deployed.
				continue
			}
			services++

			n, err := f.forwardSource(ctx, project, inst)
			if err != nil {
				failures++
				if ctx.Err() == nil {
					f.logger.Warn("source failed",
						"component", "forward",
						"project", project.Name,
						"service", inst.ServiceName,
						"error", err,
					)
				}
				continue
			}
			forwarded += n
		}
	}

	f.logger.Info("cycle completed",
		"component", "forward",
		"cycle", f.cycles,
		"services", services,
		"forwarded", forwarded,
		"failures", failures,
		"duration", time.Since(start),
	)
}

// forwardSource fetches one deployment's recent logs, classifies them,
// and pushes whatever is new. Classification happens before the push,
// so a failed push never re-offers its records; the batch is dropped
// and the next cycle fetches fresh data.
func (f *Forwarder) forwardSource(ctx context.Context, project railway.Project, inst railway.ServiceInstance) (int, error) {
	records, err := f.client.DeploymentLogs(ctx, inst.DeploymentID, f.cfg.FetchLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch logs: %w", err)
	}

	src := dedup.Source{Project: project.Name, Service: inst.ServiceName}
	fresh := f.window.Classify(src, records)
	if len(fresh) == 0 {
		return 0, nil
	}

	stream, ok := loki.BuildStream(fresh, map[string]string{
		"project": project.Name,
		"service": inst.ServiceName,
		"env":     project.EnvironmentName,
	})
	if !ok {
		return 0, nil
	}

	if err := f.pusher.Push(ctx, loki.PushRequest{Streams: []loki.Stream{stream}}); err != nil {
		return 0, fmt.Errorf("push %d records: %w", len(stream.Values), err)
	}

	f.logger.Debug("forwarded",
		"component", "forward",
		"project", project.Name,
		"service", inst.ServiceName,
		"records", len(stream.Values),
	)
	return len(stream.Values), nil
}
