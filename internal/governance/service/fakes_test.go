package service

import (
	"context"
	"sync"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/internal/governance/geo"
	"crm_automation_backend/internal/governance/repository"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu        sync.Mutex
	leads     map[uuid.UUID]domain.LeadSnapshot
	readErr   error
	updateErr error
	conflicts int
	updates   []repository.LeadPatch
}

func newFakeRepo(leads ...domain.LeadSnapshot) *fakeRepo {
	r := &fakeRepo{leads: make(map[uuid.UUID]domain.LeadSnapshot)}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeRepo) Read(_ context.Context, id uuid.UUID) (domain.LeadSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return domain.LeadSnapshot{}, r.readErr
	}
	lead, ok := r.leads[id]
	if !ok {
		return domain.LeadSnapshot{}, repository.ErrNotFound
	}
	return lead, nil
}

// Update mirrors the SQL: NULL columns are filled, flags are OR-ed.
func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, expectedVersion int64, patch repository.LeadPatch) (domain.LeadSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return domain.LeadSnapshot{}, r.updateErr
	}
	lead, ok := r.leads[id]
	if !ok {
		return domain.LeadSnapshot{}, repository.ErrNotFound
	}
	if r.conflicts > 0 {
		r.conflicts--
		lead.Version++
		r.leads[id] = lead
		return domain.LeadSnapshot{}, repository.ErrConflict
	}
	if lead.Version != expectedVersion {
		return domain.LeadSnapshot{}, repository.ErrConflict
	}

	if lead.DetectedCountry == nil {
		lead.DetectedCountry = patch.DetectedCountry
	}
	if lead.DetectedTimezone == nil {
		lead.DetectedTimezone = patch.DetectedTimezone
	}
	if lead.Classification == nil {
		lead.Classification = patch.Classification
	}
	lead.AutomationStopped = lead.AutomationStopped || patch.StopAutomation
	lead.ContactVerified = lead.ContactVerified || patch.VerifyContact
	lead.Version++

	r.leads[id] = lead
	r.updates = append(r.updates, patch)
	return lead, nil
}

func (r *fakeRepo) get(id uuid.UUID) domain.LeadSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id]
}

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	reasons []string
}

func (d *fakeDispatcher) StopLead(_ context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.reasons = append(d.reasons, reason)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return dispatch.StopAck{}, err
		}
	}
	return dispatch.StopAck{LeadID: leadID}, nil
}

type fakeGeo struct {
	result geo.GeoResult
}

func (g fakeGeo) Detect(_, _, _ *string) geo.GeoResult { return g.result }

type fakeScheduler struct {
	mu       sync.Mutex
	stops    []uuid.UUID
	classify []uuid.UUID
}

func (s *fakeScheduler) ScheduleStopRetry(_ context.Context, leadID uuid.UUID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops = append(s.stops, leadID)
	return nil
}

func (s *fakeScheduler) ScheduleClassifyRetry(_ context.Context, leadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classify = append(s.classify, leadID)
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}
