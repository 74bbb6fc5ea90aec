package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stampcard/internal/auth"
	"github.com/dukerupert/stampcard/internal/ledger"
	"github.com/dukerupert/stampcard/internal/model"
)

type CompletionHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewCompletionHandler(l *ledger.Ledger, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{ledger: l, logger: logger}
}

type completionRequest struct {
	ParticipantID string   `json:"participant_id" validate:"required"`
	GameID        string   `json:"game_id"`
	GameIDs       []string `json:"game_ids" validate:"max=50,dive,required"`
}

// Record marks one game (game_id) or several (game_ids) as completed by the
// participant. The acting operator is recorded as the host. Games already
// completed are reported, not treated as errors.
func (h *CompletionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.GameID == "" && len(req.GameIDs) == 0 {
		writeError(w, http.StatusBadRequest, "game_id or game_ids is required")
		return
	}
	hostID := auth.OperatorName(r.Context())

	if len(req.GameIDs) == 0 {
		res, err := h.ledger.RecordCompletion(r.Context(), req.ParticipantID, req.GameID, hostID)
		if err != nil {
			respondError(w, h.logger, "failed to record completion", err)
			return
		}
		status := http.StatusCreated
		if res.Outcome == ledger.AlreadyCompleted {
			status = http.StatusOK
		}
		writeJSON(w, status, res)
		return
	}

	ids := req.GameIDs
	if req.GameID != "" {
		ids = append(ids, req.GameID)
	}
	res, err := h.ledger.RecordCompletions(r.Context(), req.ParticipantID, ids, hostID)
	if err != nil {
		respondError(w, h.logger, "failed to record completions", err)
		return
	}
	status := http.StatusOK
	if len(res.Recorded) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *CompletionHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.ledger.History(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to list completions", err)
		return
	}
	if history == nil {
		history = []model.GameCompletion{}
	}
	writeJSON(w, http.StatusOK, history)
}
