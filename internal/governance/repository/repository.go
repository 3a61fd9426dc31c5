package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrConflict means the row changed since it was read.
	ErrConflict = errors.New("lead was modified concurrently")
	// ErrInvalidRow means a stored value falls outside its closed set.
	// Retrying cannot fix it.
	ErrInvalidRow = errors.New("lead row holds an invalid value")
)

// LeadPatch lists the only columns the governance engine may write.
// Derived fields fill NULL columns and never overwrite a stored value.
// The boolean flags can only be raised.
type LeadPatch struct {
	DetectedCountry  *string
	DetectedTimezone *string
	Classification   *domain.SourceClassification
	StopAutomation   bool
	VerifyContact    bool
}

// Empty reports whether applying the patch would change nothing.
func (p LeadPatch) Empty() bool {
	return p.DetectedCountry == nil &&
		p.DetectedTimezone == nil &&
		p.Classification == nil &&
		!p.StopAutomation &&
		!p.VerifyContact
}

type Repository struct {
	db db.Querier
}

func New(q db.Querier) *Repository {
	return &Repository{db: q}
}

const leadColumns = `
	id, status, source, source_classification, contact_verified, automation_stopped,
	email_bounce, whatsapp_initiated, whatsapp_opt_in, detected_country, detected_timezone,
	country, consumer_phone, consumer_email, governance_version`

// Read returns a fresh snapshot of a live lead.
func (r *Repository) Read(ctx context.Context, id uuid.UUID) (domain.LeadSnapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND deleted_at IS NULL`, id)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadSnapshot{}, ErrNotFound
	}
	return lead, err
}

// Update applies patch if the row is still at expectedVersion and returns the
// new snapshot. A stale version yields ErrConflict.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch LeadPatch) (domain.LeadSnapshot, error) {
	var classification *string
	if patch.Classification != nil {
		c := string(*patch.Classification)
		classification = &c
	}

	row := r.db.QueryRow(ctx, `
		UPDATE leads SET
			detected_country = COALESCE(detected_country, $3),
			detected_timezone = COALESCE(detected_timezone, $4),
			source_classification = COALESCE(source_classification, $5),
			automation_stopped = automation_stopped OR $6,
			contact_verified = contact_verified OR $7,
			governance_version = governance_version + 1,
			updated_at = now()
		WHERE id = $1 AND governance_version = $2 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		id, expectedVersion, patch.DetectedCountry, patch.DetectedTimezone, classification,
		patch.StopAutomation, patch.VerifyContact,
	)

	lead, err := scanLead(row)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadSnapshot{}, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists); err != nil {
		return domain.LeadSnapshot{}, err
	}
	if !exists {
		return domain.LeadSnapshot{}, ErrNotFound
	}
	return domain.LeadSnapshot{}, ErrConflict
}

// ListUnclassified returns up to limit live leads without a stored
// classification, oldest first.
func (r *Repository) ListUnclassified(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id
		FROM leads
		WHERE source_classification IS NULL AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return ids, nil
}

func scanLead(row pgx.Row) (domain.LeadSnapshot, error) {
	var (
		lead           domain.LeadSnapshot
		status         string
		source         *string
		classification *string
		email          *string
	)

	err := row.Scan(
		&lead.ID, &status, &source, &classification, &lead.ContactVerified, &lead.AutomationStopped,
		&lead.EmailBounce, &lead.WhatsAppInitiated, &lead.WhatsAppOptIn, &lead.DetectedCountry, &lead.DetectedTimezone,
		&lead.Country, &lead.Phone, &email, &lead.Version,
	)
	if err != nil {
		return domain.LeadSnapshot{}, err
	}

	lead.Status, err = domain.ParseStatus(status)
	if err != nil {
		return domain.LeadSnapshot{}, fmt.Errorf("%w: lead %s: %w", ErrInvalidRow, lead.ID, err)
	}
	if source != nil {
		lead.RawSource = *source
	}
	if classification != nil {
		c := domain.ParseStoredClassification(*classification)
		lead.Classification = &c
	}
	if email != nil {
		lead.Email = *email
	}

	return lead, nil
}
