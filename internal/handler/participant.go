package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/stampcard/internal/identity"
	"github.com/dukerupert/stampcard/internal/metrics"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/progress"
	"github.com/dukerupert/stampcard/internal/qrcode"
	"github.com/dukerupert/stampcard/internal/store"
)

type progressReader interface {
	Get(ctx context.Context, staffID, lastName string, forceRefresh bool) (*progress.Progress, error)
	GetByID(ctx context.Context, participantID string, forceRefresh bool) (*progress.Progress, error)
}

type ParticipantHandler struct {
	resolver *identity.Resolver
	progress progressReader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewParticipantHandler(resolver *identity.Resolver, pv progressReader, m *metrics.Metrics, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{resolver: resolver, progress: pv, metrics: m, logger: logger}
}

type identityRequest struct {
	StaffID  string `json:"staff_id" validate:"required,max=64"`
	LastName string `json:"last_name" validate:"required,max=128"`
}

type registrationResponse struct {
	Participant *model.Participant `json:"participant"`
	Created     bool               `json:"created"`
	QRPayload   string             `json:"qr_payload"`
	QRDataURL   string             `json:"qr_data_url"`
}

// Register creates the participant or returns the existing record for the
// same identity, together with the participant's QR code.
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, created, err := h.resolver.Register(r.Context(), req.StaffID, req.LastName)
	if err != nil {
		respondError(w, h.logger, "failed to register participant", err)
		return
	}

	payload, err := qrcode.Encode(payloadFor(p))
	if err != nil {
		respondError(w, h.logger, "failed to encode qr payload", err)
		return
	}
	dataURL, err := qrcode.DataURL(payload, qrcode.DefaultSize)
	if err != nil {
		respondError(w, h.logger, "failed to render qr code", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, registrationResponse{
		Participant: p,
		Created:     created,
		QRPayload:   payload,
		QRDataURL:   dataURL,
	})
}

// Progress serves the participant's own card. refresh=1 bypasses the cache.
func (h *ParticipantHandler) Progress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	staffID, lastName := q.Get("staff_id"), q.Get("last_name")
	if staffID == "" || lastName == "" {
		writeError(w, http.StatusBadRequest, "staff_id and last_name are required")
		return
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	pr, err := h.progress.Get(r.Context(), staffID, lastName, refresh)
	if err != nil {
		respondError(w, h.logger, "failed to load progress", err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// QRCode renders the participant's QR code as a PNG.
func (h *ParticipantHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolver.ResolveByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to load participant", err)
		return
	}

	size := qrcode.DefaultSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			writeError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	payload, err := qrcode.Encode(payloadFor(p))
	if err != nil {
		respondError(w, h.logger, "failed to encode qr payload", err)
		return
	}
	png, err := qrcode.PNG(payload, size)
	if err != nil {
		respondError(w, h.logger, "failed to render qr code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}

type scanRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type scanResponse struct {
	Participant *model.Participant `json:"participant"`
	Progress    *progress.Progress `json:"progress"`
	GiftState   model.GiftState    `json:"gift_state"`
}

// Scan accepts the text of a participant QR code, from a camera decoder or
// typed in by hand, and returns the participant with fresh progress.
func (h *ParticipantHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.ObserveScan("malformed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := qrcode.Decode(req.Payload)
	if err != nil {
		h.metrics.ObserveScan("malformed")
		writeError(w, http.StatusBadRequest, "invalid QR code")
		return
	}

	p, err := h.resolver.ResolveByID(r.Context(), payload.ParticipantID)
	if err == nil && !identity.Matches(p, payload.StaffID, payload.LastName) {
		err = store.ErrNotFound
	}
	if err != nil {
		h.metrics.ObserveScan("not_found")
		respondError(w, h.logger, "failed to resolve participant", err)
		return
	}

	h.metrics.ObserveScan("ok")
	h.writeCard(w, r, p)
}

// Lookup is the manual alternative to Scan.
func (h *ParticipantHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.resolver.Resolve(r.Context(), q.Get("staff_id"), q.Get("last_name"))
	if err != nil {
		respondError(w, h.logger, "failed to resolve participant", err)
		return
	}
	h.writeCard(w, r, p)
}

func (h *ParticipantHandler) writeCard(w http.ResponseWriter, r *http.Request, p *model.Participant) {
	pr, err := h.progress.GetByID(r.Context(), p.ID, true)
	if err != nil {
		respondError(w, h.logger, "failed to load progress", err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Participant: p, Progress: pr, GiftState: pr.GiftState()})
}

func payloadFor(p *model.Participant) qrcode.Payload {
	return qrcode.Payload{StaffID: p.StaffID, LastName: p.LastName, ParticipantID: p.ID}
}
