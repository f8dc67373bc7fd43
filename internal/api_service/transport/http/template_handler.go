package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

// TemplateCatalog lists the templates registered with the provider.
type TemplateCatalog interface {
	ListTemplates(ctx context.Context) ([]whatsapp.CatalogTemplate, error)
}

// TemplateHandler reconciles local template approval status against the
// provider catalog.
type TemplateHandler struct {
	catalog   TemplateCatalog
	templates repository.TemplateRepository
	logger    *slog.Logger
}

func NewTemplateHandler(catalog TemplateCatalog, templates repository.TemplateRepository, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		catalog:   catalog,
		templates: templates,
		logger:    logger,
	}
}

func (h *TemplateHandler) SyncTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	catalog, err := h.catalog.ListTemplates(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list provider templates", "error", err)
		writeError(w, http.StatusBadGateway, "Provider catalog unavailable", "")
		return
	}

	synced, skipped := 0, 0
	for _, entry := range catalog {
		status := mapCatalogStatus(entry.Status)
		err := h.templates.UpdateStatusByProviderName(ctx, entry.Name, status)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Catalog templates never imported locally are fine to skip.
				skipped++
				continue
			}
			h.logger.ErrorContext(ctx, "Failed to update template status", "template", entry.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
			return
		}
		synced++
	}

	h.logger.InfoContext(ctx, "Template catalog synced", "synced", synced, "skipped", skipped)
	writeJSON(w, http.StatusOK, TemplateSyncResponse{Synced: synced, Skipped: skipped})
}

func mapCatalogStatus(status string) core_domain.TemplateStatus {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return core_domain.TemplateStatusApproved
	case "REJECTED":
		return core_domain.TemplateStatusRejected
	default:
		return core_domain.TemplateStatusPending
	}
}
