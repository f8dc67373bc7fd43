package app

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type MockScheduledJobRepository struct {
	mock.Mock
}

func (m *MockScheduledJobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	return m.Called(ctx, job).Error(0)
}
func (m *MockScheduledJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledJob), args.Error(1)
}
func (m *MockScheduledJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, eventTime time.Time, errorMessage sql.NullString) error {
	return m.Called(ctx, id, status, eventTime, errorMessage).Error(0)
}
func (m *MockScheduledJobRepository) AcquireDueJobs(ctx context.Context, dueTime time.Time, limit int) ([]*domain.ScheduledJob, error) {
	args := m.Called(ctx, dueTime, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScheduledJob), args.Error(1)
}
func (m *MockScheduledJobRepository) MarkForRetry(ctx context.Context, id uuid.UUID, nextRetryTime time.Time, currentRetryCount int, errorMessage sql.NullString) error {
	return m.Called(ctx, id, nextRetryTime, currentRetryCount, errorMessage).Error(0)
}
func (m *MockScheduledJobRepository) CancelPending(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockScheduledJobRepository) UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error {
	return m.Called(ctx, id, scheduledAt).Error(0)
}

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *core_domain.Campaign) error {
	return m.Called(ctx, c).Error(0)
}
func (m *MockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Campaign), args.Error(1)
}
func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status core_domain.CampaignStatus) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *MockCampaignRepository) SetJobID(ctx context.Context, id uuid.UUID, jobID uuid.NullUUID) error {
	return m.Called(ctx, id, jobID).Error(0)
}
func (m *MockCampaignRepository) UpdateScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error {
	return m.Called(ctx, id, scheduledAt).Error(0)
}
func (m *MockCampaignRepository) SetProgressTotal(ctx context.Context, id uuid.UUID, total int) error {
	return m.Called(ctx, id, total).Error(0)
}
func (m *MockCampaignRepository) IncrementProgress(ctx context.Context, id uuid.UUID, delta repository.ProgressDelta) error {
	return m.Called(ctx, id, delta).Error(0)
}
func (m *MockCampaignRepository) ListStrandedScheduled(ctx context.Context, now time.Time) ([]*core_domain.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*core_domain.Campaign), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}
