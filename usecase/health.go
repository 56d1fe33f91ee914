package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/AzielCF/wa-gateway/domains/health"
	"github.com/AzielCF/wa-gateway/pkg/msgworker"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const healthPingTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthOptions struct {
	Sessions          SessionManager
	Valkey            Pinger // nil when Valkey is disabled
	WebhookConfigured bool
	Pool              interface{ Stats() msgworker.PoolStats }
	Subscribers       interface{ Count() int }
	ServerID          string
	Version           string
	StartedAt         time.Time
}

type healthService struct {
	opts HealthOptions
	now  func() time.Time
}

func NewHealthService(opts HealthOptions) health.IHealthUsecase {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &healthService{opts: opts, now: time.Now}
}

func (s *healthService) Check(ctx context.Context) health.Report {
	report := health.Report{
		Status:       health.StatusOk,
		ServerID:     s.opts.ServerID,
		Version:      s.opts.Version,
		Uptime:       strings.TrimSpace(humanize.RelTime(s.opts.StartedAt, s.now(), "", "")),
		Accounts:     map[string]int{},
		Dependencies: map[string]any{},
	}

	if s.opts.Sessions != nil {
		report.Accounts = s.opts.Sessions.StatusCounts()
	}

	if s.opts.Valkey == nil {
		report.Dependencies["valkey"] = health.DependencyDisabled
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err := s.opts.Valkey.Ping(pingCtx)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("[HEALTH] Valkey ping failed")
			report.Status = health.StatusDegraded
			report.Dependencies["valkey"] = "error: " + err.Error()
		} else {
			report.Dependencies["valkey"] = health.DependencyOK
		}
	}

	if s.opts.WebhookConfigured {
		report.Dependencies["webhook"] = health.DependencyConfigured
	} else {
		report.Dependencies["webhook"] = health.DependencyDisabled
	}

	if s.opts.Pool != nil {
		stats := s.opts.Pool.Stats()
		stats.WorkerStats = nil
		report.Dependencies["worker_pool"] = stats
	}
	if s.opts.Subscribers != nil {
		report.Dependencies["event_subscribers"] = s.opts.Subscribers.Count()
	}

	return report
}
