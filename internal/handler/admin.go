package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/stampcard/internal/archive"
	"github.com/dukerupert/stampcard/internal/eventconfig"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/report"
)

type ConfigurationHandler struct {
	service *eventconfig.Service
	logger  *slog.Logger
}

func NewConfigurationHandler(svc *eventconfig.Service, logger *slog.Logger) *ConfigurationHandler {
	return &ConfigurationHandler{service: svc, logger: logger}
}

func (h *ConfigurationHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context())
	if err != nil {
		respondError(w, h.logger, "failed to load configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type configurationRequest struct {
	EventName        string `json:"event_name" validate:"max=200"`
	EventDescription string `json:"event_description" validate:"max=2000"`
}

func (h *ConfigurationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req configurationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.service.Update(r.Context(), req.EventName, req.EventDescription)
	if err != nil {
		respondError(w, h.logger, "failed to update configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type ReportHandler struct {
	builder *report.Builder
	logger  *slog.Logger
}

func NewReportHandler(b *report.Builder, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{builder: b, logger: logger}
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.builder.Build(r.Context())
	if err != nil {
		respondError(w, h.logger, "failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type ArchiveHandler struct {
	manager *archive.Manager
	logger  *slog.Logger
}

func NewArchiveHandler(m *archive.Manager, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{manager: m, logger: logger}
}

func (h *ArchiveHandler) Run(w http.ResponseWriter, r *http.Request) {
	a, err := h.manager.RunNow(r.Context())
	if err != nil {
		respondError(w, h.logger, "archive failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type archiveListResponse struct {
	Status   archive.Status  `json:"status"`
	Archives []model.Archive `json:"archives"`
}

func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	archives, err := h.manager.List(r.Context(), limit)
	if err != nil {
		respondError(w, h.logger, "failed to list archives", err)
		return
	}
	writeJSON(w, http.StatusOK, archiveListResponse{Status: h.manager.Status(r.Context()), Archives: archives})
}

func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	body, rec, err := h.manager.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to download archive", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	if rec.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("archive download interrupted", "id", rec.ID, "error", err)
	}
}
