package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/relayline/wabroadcast/internal/core_domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateProviderMessageID is returned when a message insert collides on
// the unique provider message id.
var ErrDuplicateProviderMessageID = errors.New("provider message id already recorded")

// ProgressDelta carries increments to apply atomically to a campaign's
// progress counters. Negative values decrement (failed-status compensation).
type ProgressDelta struct {
	Sent      int
	Delivered int
	Read      int
	Failed    int
}

// CampaignRepository persists campaigns. Status updates clear the job handle
// whenever the new status is not scheduled, keeping the invariant that a job
// handle exists only while a campaign is scheduled.
type CampaignRepository interface {
	Create(ctx context.Context, c *core_domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status core_domain.CampaignStatus) error
	SetJobID(ctx context.Context, id uuid.UUID, jobID uuid.NullUUID) error
	UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error
	// SetProgressTotal sets progress.total once; a smaller value never
	// shrinks an already-set total.
	SetProgressTotal(ctx context.Context, id uuid.UUID, total int) error
	// IncrementProgress applies the delta in a single atomic statement.
	IncrementProgress(ctx context.Context, id uuid.UUID, delta ProgressDelta) error
	// ListStrandedScheduled finds campaigns left scheduled in the future
	// with no job handle, e.g. after a crash between create and enqueue.
	ListStrandedScheduled(ctx context.Context, now time.Time) ([]*core_domain.Campaign, error)
}

// ContactRepository persists contacts.
type ContactRepository interface {
	Create(ctx context.Context, c *core_domain.Contact) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*core_domain.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*core_domain.Contact, error)
}

// TemplateRepository reads template definitions and reconciles their
// provider approval status.
type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Template, error)
	// UpdateStatusByProviderName applies the catalog's moderation verdict.
	UpdateStatusByProviderName(ctx context.Context, providerName string, status core_domain.TemplateStatus) error
}

// MessageRepository persists per-contact send attempts and reconciles
// asynchronous status callbacks.
type MessageRepository interface {
	Create(ctx context.Context, m *core_domain.Message) error
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*core_domain.Message, error)
	// ApplyStatusUpdate sets the message status and records the event
	// timestamp for sent/delivered/read transitions. Already-set timestamps
	// are never overwritten, so duplicated or out-of-order callbacks are
	// idempotent.
	ApplyStatusUpdate(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time, errorMessage sql.NullString) error
	// RecordStatusTimestamp back-fills the first-seen timestamp for a status
	// without touching the status column, for callbacks that arrive after a
	// later status was already recorded.
	RecordStatusTimestamp(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time) error
	// LatestOutboundForContact returns the most recently sent message to a
	// contact (status sent/delivered/read, sent_at descending) for the
	// original-context heuristic.
	LatestOutboundForContact(ctx context.Context, contactID uuid.UUID) (*core_domain.Message, error)
	// HasMessageForContact reports whether a send attempt was already
	// recorded for the contact in the campaign (idempotency guard on
	// campaign re-runs).
	HasMessageForContact(ctx context.Context, campaignID, contactID uuid.UUID) (bool, error)
}

// ResponseRepository persists inbound responses.
type ResponseRepository interface {
	Create(ctx context.Context, r *core_domain.Response) error
	MarkAutoResponded(ctx context.Context, id uuid.UUID) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// NotificationRepository persists write-once notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *core_domain.Notification) error
}
