package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a scheduled job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing" // Job picked up by the poller
	StatusCompleted  JobStatus = "completed"  // Consumer finished the job
	StatusFailed     JobStatus = "failed"     // Job failed and will not be retried (or exhausted retries)
	StatusRetry      JobStatus = "retry"      // Job failed, but is scheduled for a retry
	StatusCancelled  JobStatus = "cancelled"  // Job was cancelled before it was consumed
)

// JobTypeCampaignSend is the only job type this system schedules: kick off
// the send loop for one campaign.
const JobTypeCampaignSend = "campaign_send"

// ScheduledJob represents a task that is scheduled to be executed at a later time.
type ScheduledJob struct {
	ID          uuid.UUID       `json:"id"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`      // Job-specific parameters, stored as JSONB
	ScheduledAt time.Time       `json:"scheduled_at"` // When the job is intended to run
	Status      JobStatus       `json:"status"`
	RunAt       sql.NullTime    `json:"run_at,omitempty"`       // When the poller picked the job up
	ProcessedAt sql.NullTime    `json:"processed_at,omitempty"` // When processing completed/failed
	Error       sql.NullString  `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewScheduledJob creates a new ScheduledJob instance. Payload should be a
// marshaled JSON byte slice.
func NewScheduledJob(id uuid.UUID, jobType string, payload json.RawMessage, scheduledAt time.Time) *ScheduledJob {
	now := time.Now().UTC()
	return &ScheduledJob{
		ID:          id,
		JobType:     jobType,
		Payload:     payload,
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CampaignJobPayload is the Payload shape for JobTypeCampaignSend. The same
// shape travels over the message bus to the sending service.
type CampaignJobPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
}

// ToJSON marshals the CampaignJobPayload to json.RawMessage.
func (p *CampaignJobPayload) ToJSON() (json.RawMessage, error) {
	return json.Marshal(p)
}

// FromJSON unmarshals json.RawMessage into CampaignJobPayload.
func (p *CampaignJobPayload) FromJSON(data json.RawMessage) error {
	return json.Unmarshal(data, p)
}
