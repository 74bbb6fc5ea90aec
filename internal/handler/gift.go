package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stampcard/internal/auth"
	"github.com/dukerupert/stampcard/internal/redemption"
)

type GiftHandler struct {
	service *redemption.Service
	logger  *slog.Logger
}

func NewGiftHandler(svc *redemption.Service, logger *slog.Logger) *GiftHandler {
	return &GiftHandler{service: svc, logger: logger}
}

func (h *GiftHandler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.State(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to load gift state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Redeem hands out the gift. The operator name is recorded as redeemed_by.
func (h *GiftHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	red, err := h.service.Redeem(r.Context(), r.PathValue("id"), auth.OperatorName(r.Context()))
	if err != nil {
		respondError(w, h.logger, "failed to redeem gift", err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}
