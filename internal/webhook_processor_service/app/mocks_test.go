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
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *core_domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *MockMessageRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*core_domain.Message, error) {
	args := m.Called(ctx, providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Message), args.Error(1)
}
func (m *MockMessageRepository) ApplyStatusUpdate(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time, errorMessage sql.NullString) error {
	return m.Called(ctx, id, status, eventTime, errorMessage).Error(0)
}
func (m *MockMessageRepository) RecordStatusTimestamp(ctx context.Context, id uuid.UUID, status core_domain.MessageStatus, eventTime time.Time) error {
	return m.Called(ctx, id, status, eventTime).Error(0)
}
func (m *MockMessageRepository) LatestOutboundForContact(ctx context.Context, contactID uuid.UUID) (*core_domain.Message, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Message), args.Error(1)
}
func (m *MockMessageRepository) HasMessageForContact(ctx context.Context, campaignID, contactID uuid.UUID) (bool, error) {
	args := m.Called(ctx, campaignID, contactID)
	return args.Bool(0), args.Error(1)
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

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) Create(ctx context.Context, c *core_domain.Contact) error {
	return m.Called(ctx, c).Error(0)
}
func (m *MockContactRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*core_domain.Contact, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*core_domain.Contact), args.Error(1)
}
func (m *MockContactRepository) GetByPhone(ctx context.Context, phone string) (*core_domain.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Contact), args.Error(1)
}

type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) Create(ctx context.Context, r *core_domain.Response) error {
	return m.Called(ctx, r).Error(0)
}
func (m *MockResponseRepository) MarkAutoResponded(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockResponseRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *core_domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Template), args.Error(1)
}
func (m *MockTemplateRepository) UpdateStatusByProviderName(ctx context.Context, providerName string, status core_domain.TemplateStatus) error {
	return m.Called(ctx, providerName, status).Error(0)
}

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Enabled() bool {
	return m.Called().Bool(0)
}
func (m *MockForwarder) Forward(ctx context.Context, response *core_domain.Response, contact *core_domain.Contact) error {
	return m.Called(ctx, response, contact).Error(0)
}
