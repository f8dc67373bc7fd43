package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps bundles the handlers the API router mounts.
type RouterDeps struct {
	Campaigns *CampaignHandler
	Webhooks  *WebhookHandler
	Responses *ResponseHandler
	Calendar  *CalendarHandler
	Templates *TemplateHandler
}

// NewRouter assembles the API service's chi router.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", deps.Campaigns.CreateCampaign)
			r.Get("/{campaignID}", deps.Campaigns.GetCampaign)
			r.Get("/{campaignID}/status", deps.Campaigns.GetCampaign)
			r.Post("/{campaignID}/cancel", deps.Campaigns.CancelCampaign)
			r.Post("/{campaignID}/reschedule", deps.Campaigns.RescheduleCampaign)
		})
		r.Post("/responses/send", deps.Responses.SendResponse)
		r.Post("/templates/sync", deps.Templates.SyncTemplates)
		r.Post("/webhooks/calendar", deps.Calendar.ReceiveEvent)
	})

	r.Route("/webhooks/whatsapp", func(r chi.Router) {
		r.Get("/", deps.Webhooks.Verify)
		r.Post("/", deps.Webhooks.Receive)
	})

	return r
}
