package service

import (
	"context"
	"errors"
	"fmt"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/internal/governance/locker"
	"crm_automation_backend/internal/governance/repository"
	"crm_automation_backend/platform/apperr"
	"crm_automation_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxVersionAttempts      = 3
	defaultBatchConcurrency = 8
)

// Dependencies wires the orchestrator. Scheduler and Bus are optional.
type Dependencies struct {
	Repo             LeadRepository
	Dispatcher       Dispatcher
	Geo              GeoDetector
	Locker           locker.LeadLocker
	Retry            dispatch.RetryPolicy
	Scheduler        RetryScheduler
	Bus              events.Bus
	Log              *logger.Logger
	BatchConcurrency int
}

// Orchestrator sequences the governance rules against fresh lead snapshots.
// Every read-modify-write on a lead runs under that lead's lock and a
// version check.
type Orchestrator struct {
	repo       LeadRepository
	dispatcher Dispatcher
	geo        GeoDetector
	locker     locker.LeadLocker
	retry      dispatch.RetryPolicy
	scheduler  RetryScheduler
	bus        events.Bus
	log        *logger.Logger
	batchLimit int
}

func New(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		repo:       deps.Repo,
		dispatcher: deps.Dispatcher,
		geo:        deps.Geo,
		locker:     deps.Locker,
		retry:      deps.Retry,
		scheduler:  deps.Scheduler,
		bus:        deps.Bus,
		log:        deps.Log,
		batchLimit: deps.BatchConcurrency,
	}
	if o.locker == nil {
		o.locker = locker.NewKeyedMutex()
	}
	if o.retry == nil {
		o.retry = dispatch.NoRetry{}
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.batchLimit <= 0 {
		o.batchLimit = defaultBatchConcurrency
	}
	return o
}

// ClassifyInput carries trigger-supplied values that override the stored
// snapshot for this computation only.
type ClassifyInput struct {
	RawSource         *string
	WhatsAppInitiated *bool
	Country           *string
	Phone             *string
	Email             *string
}

// Derived is the metadata computed for a lead.
type Derived struct {
	Classification domain.SourceClassification `json:"classification"`
	Country        *string                     `json:"country,omitempty"`
	Timezone       *string                     `json:"timezone,omitempty"`
	Persisted      bool                        `json:"persisted"`
}

// DetectAndClassify computes classification and geo metadata and writes the
// non-null results into columns that are still NULL.
func (o *Orchestrator) DetectAndClassify(ctx context.Context, leadID uuid.UUID, in ClassifyInput) (Derived, error) {
	const op = "DetectAndClassify"

	var derived Derived
	_, err := o.mutate(ctx, op, leadID, func(lead domain.LeadSnapshot) repository.LeadPatch {
		derived = o.derive(lead, in)

		var patch repository.LeadPatch
		if lead.Classification == nil {
			c := derived.Classification
			patch.Classification = &c
		}
		if lead.DetectedCountry == nil {
			patch.DetectedCountry = derived.Country
		}
		if lead.DetectedTimezone == nil {
			patch.DetectedTimezone = derived.Timezone
		}
		derived.Persisted = !patch.Empty()
		return patch
	})
	if err != nil {
		o.classificationFailed(ctx, leadID, err)
		return Derived{}, err
	}

	if derived.Persisted {
		o.publish(ctx, events.LeadClassified{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         leadID,
			Classification: string(derived.Classification),
			Country:        derived.Country,
			Timezone:       derived.Timezone,
		})
	}
	return derived, nil
}

func (o *Orchestrator) derive(lead domain.LeadSnapshot, in ClassifyInput) Derived {
	raw := lead.RawSource
	if in.RawSource != nil {
		raw = *in.RawSource
	}
	initiated := lead.WhatsAppInitiated
	if in.WhatsAppInitiated != nil {
		initiated = *in.WhatsAppInitiated
	}

	country := firstNonEmpty(in.Country, lead.Country)
	phone := firstNonEmpty(in.Phone, &lead.Phone)
	email := firstNonEmpty(in.Email, &lead.Email)

	derived := Derived{
		Classification: domain.Classify(raw, domain.ClassifyContext{WhatsAppInitiated: initiated}),
	}
	if o.geo != nil {
		g := o.geo.Detect(country, phone, email)
		derived.Country = g.Country
		derived.Timezone = g.Timezone
	}
	return derived
}

// RequestStop asks the dispatch service to halt the lead's automation and
// marks the lead stopped only after the service acknowledged. A lead that is
// already stopped is acknowledged without contacting the service.
func (o *Orchestrator) RequestStop(ctx context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error) {
	const op = "RequestStop"
	log := o.log.WithContext(ctx)

	unlock, err := o.lock(ctx, op, leadID)
	if err != nil {
		return dispatch.StopAck{}, err
	}
	defer unlock()

	lead, err := o.repo.Read(ctx, leadID)
	if err != nil {
		return dispatch.StopAck{}, o.repoError(op, err)
	}
	if lead.AutomationStopped {
		return dispatch.StopAck{LeadID: leadID, AlreadyStopped: true}, nil
	}

	var ack dispatch.StopAck
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		ack, callErr = o.dispatcher.StopLead(ctx, leadID, reason)
		return callErr
	})
	if err != nil {
		log.StopRequested(leadID.String(), reason, false, err)
		if !FailureAlertsMuted(ctx) {
			o.publish(ctx, events.StopRequestFailed{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    leadID,
				Reason:    reason,
				Error:     err.Error(),
			})
		}
		if dispatch.IsTransient(err) {
			o.scheduleStopRetry(ctx, leadID, reason)
		}
		return dispatch.StopAck{}, apperr.Unavailable("dispatch service did not confirm the stop",
			fmt.Errorf("%w: %w", ErrDispatchUnavailable, err)).WithOp(op)
	}

	if _, err := o.casUpdate(ctx, op, lead, leadID, func(domain.LeadSnapshot) repository.LeadPatch {
		return repository.LeadPatch{StopAutomation: true}
	}); err != nil {
		// Dispatch has stopped; the local flag will be set by the retry.
		o.scheduleStopRetry(ctx, leadID, reason)
		return ack, err
	}

	log.StopRequested(leadID.String(), reason, true, nil)
	o.publish(ctx, events.AutomationStopped{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		Reason:         reason,
		AlreadyStopped: ack.AlreadyStopped,
	})
	return ack, nil
}

// StopOutcome reports what a stop-condition check did.
type StopOutcome struct {
	Decision domain.StopDecision `json:"decision"`
	Ack      *dispatch.StopAck   `json:"ack,omitempty"`
}

// EnforceStopConditions evaluates the stop rules on a fresh snapshot and
// requests a stop when they fire on a lead that is still running.
func (o *Orchestrator) EnforceStopConditions(ctx context.Context, leadID uuid.UUID) (StopOutcome, error) {
	lead, err := o.repo.Read(ctx, leadID)
	if err != nil {
		return StopOutcome{}, o.repoError("EnforceStopConditions", err)
	}

	outcome := StopOutcome{Decision: domain.EvaluateStop(lead)}
	if !outcome.Decision.ShouldStop || lead.AutomationStopped {
		return outcome, nil
	}

	ack, err := o.RequestStop(ctx, leadID, outcome.Decision.Reason)
	if err != nil {
		return outcome, err
	}
	outcome.Ack = &ack
	return outcome, nil
}

// Evaluate authorizes automation for a fresh snapshot of the lead.
func (o *Orchestrator) Evaluate(ctx context.Context, leadID uuid.UUID) (domain.AutomationDecision, error) {
	lead, err := o.repo.Read(ctx, leadID)
	if err != nil {
		return domain.AutomationDecision{}, o.repoError("Evaluate", err)
	}

	decision := domain.Authorize(lead)
	o.log.WithContext(ctx).GovernanceDecision(leadID.String(), decision.Eligibility.Eligible, decision.Eligibility.Reason)
	return decision, nil
}

// BatchResult is one lead's outcome in EvaluateMany.
type BatchResult struct {
	LeadID   uuid.UUID                  `json:"leadId"`
	Decision *domain.AutomationDecision `json:"decision,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// EvaluateMany evaluates leads concurrently. Per-lead failures are reported
// in the result; only cancellation aborts the batch.
func (o *Orchestrator) EvaluateMany(ctx context.Context, leadIDs []uuid.UUID) ([]BatchResult, error) {
	results := make([]BatchResult, len(leadIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchLimit)

	for i, id := range leadIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].LeadID = id
			decision, err := o.Evaluate(gctx, id)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Decision = &decision
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// VerifyContact marks the lead's contact details as verified.
func (o *Orchestrator) VerifyContact(ctx context.Context, leadID uuid.UUID) (domain.LeadSnapshot, error) {
	return o.mutate(ctx, "VerifyContact", leadID, func(lead domain.LeadSnapshot) repository.LeadPatch {
		if lead.ContactVerified {
			return repository.LeadPatch{}
		}
		return repository.LeadPatch{VerifyContact: true}
	})
}

// mutate locks the lead, then reads it and applies build's patch.
func (o *Orchestrator) mutate(ctx context.Context, op string, leadID uuid.UUID, build func(domain.LeadSnapshot) repository.LeadPatch) (domain.LeadSnapshot, error) {
	unlock, err := o.lock(ctx, op, leadID)
	if err != nil {
		return domain.LeadSnapshot{}, err
	}
	defer unlock()

	lead, err := o.repo.Read(ctx, leadID)
	if err != nil {
		return domain.LeadSnapshot{}, o.repoError(op, err)
	}
	return o.casUpdate(ctx, op, lead, leadID, build)
}

// casUpdate writes build(lead) at lead.Version, re-reading and rebuilding the
// patch when another writer got there first.
func (o *Orchestrator) casUpdate(ctx context.Context, op string, lead domain.LeadSnapshot, leadID uuid.UUID, build func(domain.LeadSnapshot) repository.LeadPatch) (domain.LeadSnapshot, error) {
	for attempt := 1; ; attempt++ {
		patch := build(lead)
		if patch.Empty() {
			return lead, nil
		}

		updated, err := o.repo.Update(ctx, leadID, lead.Version, patch)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt >= maxVersionAttempts {
			return domain.LeadSnapshot{}, o.repoError(op, err)
		}

		lead, err = o.repo.Read(ctx, leadID)
		if err != nil {
			return domain.LeadSnapshot{}, o.repoError(op, err)
		}
	}
}

func (o *Orchestrator) lock(ctx context.Context, op string, leadID uuid.UUID) (locker.Unlock, error) {
	unlock, err := o.locker.Lock(ctx, leadID)
	if err != nil {
		return nil, apperr.Unavailable("could not lock lead", err).WithOp(op)
	}
	return unlock, nil
}

func (o *Orchestrator) repoError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found").WithOp(op)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(apperr.KindConflict, "lead was modified concurrently", err).WithOp(op)
	case errors.Is(err, repository.ErrInvalidRow):
		o.log.Error("lead record is invalid", "op", op, "error", err)
		return apperr.Wrap(apperr.KindInternal, "lead record is invalid", err).WithOp(op)
	default:
		o.log.DatabaseError(op, err)
		return apperr.Unavailable("lead repository unavailable",
			fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)).WithOp(op)
	}
}

func (o *Orchestrator) classificationFailed(ctx context.Context, leadID uuid.UUID, err error) {
	if !errors.Is(err, ErrRepositoryUnavailable) {
		return
	}
	o.publish(ctx, events.ClassificationFailed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Error:     err.Error(),
	})
	if o.scheduler == nil {
		return
	}
	if schedErr := o.scheduler.ScheduleClassifyRetry(context.WithoutCancel(ctx), leadID); schedErr != nil {
		o.log.Error("failed to schedule classification retry", "lead_id", leadID, "error", schedErr)
	}
}

func (o *Orchestrator) scheduleStopRetry(ctx context.Context, leadID uuid.UUID, reason string) {
	if o.scheduler == nil {
		return
	}
	if err := o.scheduler.ScheduleStopRetry(context.WithoutCancel(ctx), leadID, reason); err != nil {
		o.log.Error("failed to schedule stop retry", "lead_id", leadID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, event)
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
