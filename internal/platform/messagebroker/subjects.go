package messagebroker

// NATS subjects shared across services.
const (
	// SubjectCampaignJobs carries due campaign-send jobs from the scheduler
	// to the sending service.
	SubjectCampaignJobs = "campaigns.jobs.send"

	// SubjectWhatsAppEventsRaw carries raw provider webhook payloads from
	// the API service to the webhook processor.
	SubjectWhatsAppEventsRaw = "whatsapp.events.raw"

	// SubjectCampaignStatus and SubjectCampaignProgress broadcast campaign
	// lifecycle and counter changes for any interested listener.
	SubjectCampaignStatus   = "campaigns.events.status"
	SubjectCampaignProgress = "campaigns.events.progress"
)
