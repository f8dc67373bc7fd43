package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

type bridgeFixture struct {
	jobs      *MockScheduledJobRepository
	campaigns *MockCampaignRepository
	bridge    *SchedulerBridge
}

func newBridgeFixture() *bridgeFixture {
	f := &bridgeFixture{
		jobs:      new(MockScheduledJobRepository),
		campaigns: new(MockCampaignRepository),
	}
	f.bridge = NewSchedulerBridge(f.jobs, f.campaigns, discardLogger())
	return f
}

func scheduledCampaign() *core_domain.Campaign {
	return &core_domain.Campaign{
		ID:          uuid.New(),
		Status:      core_domain.CampaignStatusScheduled,
		ScheduledAt: time.Now().UTC().Add(time.Hour),
	}
}

func TestSchedulerBridge_ScheduleRecordsJobHandle(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()

	var createdJob *domain.ScheduledJob
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.ScheduledJob) bool {
		createdJob = j
		return j.JobType == domain.JobTypeCampaignSend && j.ScheduledAt.Equal(campaign.ScheduledAt)
	})).Return(nil)
	f.campaigns.On("SetJobID", mock.Anything, campaign.ID, mock.MatchedBy(func(id uuid.NullUUID) bool {
		return id.Valid
	})).Return(nil)

	jobID, err := f.bridge.Schedule(context.Background(), campaign)

	require.NoError(t, err)
	require.NotNil(t, createdJob)
	assert.Equal(t, createdJob.ID, jobID)

	var payload domain.CampaignJobPayload
	require.NoError(t, payload.FromJSON(createdJob.Payload))
	assert.Equal(t, campaign.ID, payload.CampaignID)
	assert.Equal(t, jobID, payload.JobID)
}

func TestSchedulerBridge_ScheduleFailsWhenJobCreateFails(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()

	f.jobs.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := f.bridge.Schedule(context.Background(), campaign)

	assert.Error(t, err)
	f.campaigns.AssertNotCalled(t, "SetJobID", mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulerBridge_CancelWithoutJobHandleIsNoOp(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()

	require.NoError(t, f.bridge.Cancel(context.Background(), campaign))

	f.jobs.AssertNotCalled(t, "CancelPending", mock.Anything, mock.Anything)
}

func TestSchedulerBridge_CancelToleratesConsumedJob(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()
	campaign.JobID = uuid.NullUUID{UUID: uuid.New(), Valid: true}

	f.jobs.On("CancelPending", mock.Anything, campaign.JobID.UUID).Return(domain.ErrNotFound)

	assert.NoError(t, f.bridge.Cancel(context.Background(), campaign))
}

func TestSchedulerBridge_RescheduleMovesPendingJob(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()
	campaign.JobID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	newTime := time.Now().UTC().Add(2 * time.Hour)

	f.jobs.On("UpdateScheduledAt", mock.Anything, campaign.JobID.UUID, newTime).Return(nil)

	require.NoError(t, f.bridge.Reschedule(context.Background(), campaign, newTime))

	f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSchedulerBridge_RescheduleEnqueuesFreshJobWhenGone(t *testing.T) {
	f := newBridgeFixture()
	campaign := scheduledCampaign()
	campaign.JobID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	newTime := time.Now().UTC().Add(2 * time.Hour)

	f.jobs.On("UpdateScheduledAt", mock.Anything, campaign.JobID.UUID, newTime).Return(domain.ErrNotFound)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.ScheduledJob) bool {
		return j.ScheduledAt.Equal(newTime)
	})).Return(nil)
	f.campaigns.On("SetJobID", mock.Anything, campaign.ID, mock.Anything).Return(nil)

	require.NoError(t, f.bridge.Reschedule(context.Background(), campaign, newTime))

	f.jobs.AssertExpectations(t)
}

func TestSchedulerBridge_RecoverStranded(t *testing.T) {
	f := newBridgeFixture()
	c1 := scheduledCampaign()
	c2 := scheduledCampaign()

	f.campaigns.On("ListStrandedScheduled", mock.Anything, mock.Anything).
		Return([]*core_domain.Campaign{c1, c2}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.campaigns.On("SetJobID", mock.Anything, c1.ID, mock.Anything).Return(nil)
	f.campaigns.On("SetJobID", mock.Anything, c2.ID, mock.Anything).Return(nil)

	recovered, err := f.bridge.RecoverStranded(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
}

func TestSchedulerBridge_RecoverStrandedCountsOnlySuccesses(t *testing.T) {
	f := newBridgeFixture()
	c1 := scheduledCampaign()
	c2 := scheduledCampaign()

	f.campaigns.On("ListStrandedScheduled", mock.Anything, mock.Anything).
		Return([]*core_domain.Campaign{c1, c2}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.campaigns.On("SetJobID", mock.Anything, c2.ID, mock.Anything).Return(nil)

	recovered, err := f.bridge.RecoverStranded(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
}
