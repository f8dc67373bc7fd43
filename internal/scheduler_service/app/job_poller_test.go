package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	"github.com/relayline/wabroadcast/internal/scheduler_service/domain"
)

type pollerFixture struct {
	repo      *MockScheduledJobRepository
	publisher *MockPublisher
	poller    *JobPoller
}

func newPollerFixture() *pollerFixture {
	f := &pollerFixture{
		repo:      new(MockScheduledJobRepository),
		publisher: new(MockPublisher),
	}
	f.poller = NewJobPoller(f.repo, f.publisher, discardLogger(), PollerConfig{
		PollingInterval:  time.Second,
		JobBatchSize:     10,
		MaxAttempts:      3,
		RetryBackoffBase: time.Minute,
	})
	return f
}

func dueCampaignJob(t *testing.T) *domain.ScheduledJob {
	t.Helper()
	payload, err := (&domain.CampaignJobPayload{CampaignID: uuid.New()}).ToJSON()
	require.NoError(t, err)
	return domain.NewScheduledJob(uuid.New(), domain.JobTypeCampaignSend, payload, time.Now().UTC().Add(-time.Minute))
}

func TestJobPoller_DispatchesDueJob(t *testing.T) {
	f := newPollerFixture()
	job := dueCampaignJob(t)

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).
		Return([]*domain.ScheduledJob{job}, nil)
	var published []byte
	f.publisher.On("Publish", mock.Anything, messagebroker.SubjectCampaignJobs, mock.MatchedBy(func(data []byte) bool {
		published = data
		return true
	})).Return(nil)

	dispatched, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	// The published payload carries the job id so the consumer can finalize it.
	var payload domain.CampaignJobPayload
	require.NoError(t, json.Unmarshal(published, &payload))
	assert.Equal(t, job.ID, payload.JobID)

	// The job stays in processing until the consumer finalizes it.
	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobPoller_NoDueJobsIsQuiet(t *testing.T) {
	f := newPollerFixture()

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).Return(nil, domain.ErrNoDueJobs)

	dispatched, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	assert.Zero(t, dispatched)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestJobPoller_PublishFailureSchedulesRetry(t *testing.T) {
	f := newPollerFixture()
	job := dueCampaignJob(t)
	job.RetryCount = 1

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).
		Return([]*domain.ScheduledJob{job}, nil)
	f.publisher.On("Publish", mock.Anything, messagebroker.SubjectCampaignJobs, mock.Anything).Return(assert.AnError)
	f.repo.On("MarkForRetry", mock.Anything, job.ID, mock.MatchedBy(func(next time.Time) bool {
		// Second retry doubles the base backoff.
		return time.Until(next) > 90*time.Second
	}), 1, mock.Anything).Return(nil)

	_, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestJobPoller_PublishFailureAfterMaxAttemptsFailsJob(t *testing.T) {
	f := newPollerFixture()
	job := dueCampaignJob(t)
	job.RetryCount = 2

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).
		Return([]*domain.ScheduledJob{job}, nil)
	f.publisher.On("Publish", mock.Anything, messagebroker.SubjectCampaignJobs, mock.Anything).Return(assert.AnError)
	f.repo.On("UpdateStatus", mock.Anything, job.ID, domain.StatusFailed, mock.Anything, mock.Anything).Return(nil)

	_, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkForRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJobPoller_MalformedPayloadFailsImmediately(t *testing.T) {
	f := newPollerFixture()
	job := domain.NewScheduledJob(uuid.New(), domain.JobTypeCampaignSend, json.RawMessage("not json"), time.Now().UTC())

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).
		Return([]*domain.ScheduledJob{job}, nil)
	f.repo.On("UpdateStatus", mock.Anything, job.ID, domain.StatusFailed, mock.Anything, mock.Anything).Return(nil)

	_, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
}

func TestJobPoller_UnknownJobTypeFailsImmediately(t *testing.T) {
	f := newPollerFixture()
	job := domain.NewScheduledJob(uuid.New(), "mystery_job", json.RawMessage(`{}`), time.Now().UTC())

	f.repo.On("AcquireDueJobs", mock.Anything, mock.Anything, 10).
		Return([]*domain.ScheduledJob{job}, nil)
	f.repo.On("UpdateStatus", mock.Anything, job.ID, domain.StatusFailed, mock.Anything, mock.Anything).Return(nil)

	_, err := f.poller.PollAndDispatchJobs(context.Background())

	require.NoError(t, err)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryBackoff(t *testing.T) {
	base := time.Minute
	assert.Equal(t, time.Minute, RetryBackoff(base, 0))
	assert.Equal(t, 2*time.Minute, RetryBackoff(base, 1))
	assert.Equal(t, 8*time.Minute, RetryBackoff(base, 3))
}
