package http

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

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

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, campaign *core_domain.Campaign) (uuid.UUID, error) {
	args := m.Called(ctx, campaign)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
func (m *MockScheduler) Cancel(ctx context.Context, campaign *core_domain.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}
func (m *MockScheduler) Reschedule(ctx context.Context, campaign *core_domain.Campaign, scheduledAt time.Time) error {
	return m.Called(ctx, campaign, scheduledAt).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

type MockTextSender struct {
	mock.Mock
}

func (m *MockTextSender) SendText(ctx context.Context, phone, body string) *whatsapp.SendResult {
	return m.Called(ctx, phone, body).Get(0).(*whatsapp.SendResult)
}

type MockTemplateCatalog struct {
	mock.Mock
}

func (m *MockTemplateCatalog) ListTemplates(ctx context.Context) ([]whatsapp.CatalogTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]whatsapp.CatalogTemplate), args.Error(1)
}
