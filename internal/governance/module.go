// Package governance provides the automation governance bounded context:
// lead classification, geo detection, eligibility, channel policy and
// stop enforcement.
package governance

import (
	"fmt"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/geo"
	"crm_automation_backend/internal/governance/handler"
	"crm_automation_backend/internal/governance/locker"
	"crm_automation_backend/internal/governance/repository"
	"crm_automation_backend/internal/governance/service"
	apphttp "crm_automation_backend/internal/http"
	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/db"
	"crm_automation_backend/platform/logger"
	"crm_automation_backend/platform/validator"
)

// Config combines the settings the governance context reads.
type Config interface {
	config.DispatchConfig
	config.GovernanceConfig
}

// LockerConfig is what NewLeadLocker reads.
type LockerConfig interface {
	config.SchedulerConfig
	config.GovernanceConfig
}

// NewLeadLocker returns a Redis-backed locker when REDIS_URL is set, so
// every API and worker process shares the same per-lead lock. Without Redis
// the lock only covers this process. The returned close func is never nil.
func NewLeadLocker(cfg LockerConfig, log *logger.Logger) (locker.LeadLocker, func(), error) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead locks are process-local")
		return locker.NewKeyedMutex(), func() {}, nil
	}

	client, err := locker.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return locker.NewRedisLocker(client, cfg.GetGovernanceLockTTL()), func() { _ = client.Close() }, nil
}

// NewOrchestrator wires the orchestrator against Postgres and the dispatch
// service. scheduler may be nil when Redis is not configured.
func NewOrchestrator(q db.Querier, bus events.Bus, cfg Config, lock locker.LeadLocker, scheduler service.RetryScheduler, log *logger.Logger) (*service.Orchestrator, error) {
	table, err := geo.DefaultTable()
	if err != nil {
		return nil, fmt.Errorf("load country table: %w", err)
	}

	return service.New(service.Dependencies{
		Repo:             repository.New(q),
		Dispatcher:       dispatch.NewClient(cfg, log),
		Geo:              geo.NewResolver(table, geo.WithDefaultRegion(cfg.GetGovernanceDefaultRegion())),
		Locker:           lock,
		Retry:            dispatch.NewBackoffPolicy(cfg),
		Scheduler:        scheduler,
		Bus:              bus,
		Log:              log,
		BatchConcurrency: cfg.GetGovernanceBatchConcurrency(),
	}), nil
}

// Module is the governance bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	orchestrator *service.Orchestrator
}

// NewModule creates the module. Lead lifecycle changes reach it through
// POST /automation/triggers; the CRM owns the lead records and calls in.
func NewModule(orchestrator *service.Orchestrator, val *validator.Validator) *Module {
	return &Module{
		handler:      handler.New(orchestrator, val),
		orchestrator: orchestrator,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "governance"
}

// Orchestrator returns the governance orchestrator for external use.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orchestrator
}

// RegisterRoutes mounts governance routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
