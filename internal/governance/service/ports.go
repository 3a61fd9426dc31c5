package service

import (
	"context"
	"errors"

	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/internal/governance/geo"
	"crm_automation_backend/internal/governance/repository"

	"github.com/google/uuid"
)

var (
	// ErrRepositoryUnavailable wraps failures to read or write the lead store.
	ErrRepositoryUnavailable = errors.New("lead repository unavailable")
	// ErrDispatchUnavailable wraps failures to get a stop confirmation.
	ErrDispatchUnavailable = errors.New("dispatch service unavailable")
)

// LeadRepository is the persistence the orchestrator needs.
type LeadRepository interface {
	Read(ctx context.Context, id uuid.UUID) (domain.LeadSnapshot, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch repository.LeadPatch) (domain.LeadSnapshot, error)
}

// Dispatcher halts automation sequences in the campaign dispatch service.
type Dispatcher interface {
	StopLead(ctx context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error)
}

// GeoDetector resolves country and timezone.
type GeoDetector interface {
	Detect(explicitCountry, phone, email *string) geo.GeoResult
}

// RetryScheduler enqueues background retries for work that failed on an
// unavailable collaborator.
type RetryScheduler interface {
	ScheduleStopRetry(ctx context.Context, leadID uuid.UUID, reason string) error
	ScheduleClassifyRetry(ctx context.Context, leadID uuid.UUID) error
}

type muteAlertsKey struct{}

// WithoutFailureAlerts marks ctx so a failed RequestStop is logged but not
// published as StopRequestFailed. Background retries use it for every
// attempt except the last.
func WithoutFailureAlerts(ctx context.Context) context.Context {
	return context.WithValue(ctx, muteAlertsKey{}, true)
}

func FailureAlertsMuted(ctx context.Context) bool {
	muted, _ := ctx.Value(muteAlertsKey{}).(bool)
	return muted
}
