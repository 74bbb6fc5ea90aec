package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stampcard/internal/catalog"
)

// catalogInvalidator is told when the active game list may have changed.
type catalogInvalidator interface {
	InvalidateGames()
}

type GameHandler struct {
	catalog *catalog.Catalog
	cache   catalogInvalidator
	logger  *slog.Logger
}

func NewGameHandler(c *catalog.Catalog, cache catalogInvalidator, logger *slog.Logger) *GameHandler {
	return &GameHandler{catalog: c, cache: cache, logger: logger}
}

func (h *GameHandler) changed() {
	if h.cache != nil {
		h.cache.InvalidateGames()
	}
}

func (h *GameHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.ListActive(r.Context())
	if err != nil {
		respondError(w, h.logger, "failed to list games", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.catalog.ListAll(r.Context())
	if err != nil {
		respondError(w, h.logger, "failed to list games", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.catalog.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to get game", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Host returns the active host running the game's station.
func (h *GameHandler) Host(w http.ResponseWriter, r *http.Request) {
	host, err := h.catalog.HostForGame(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to get game host", err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

type gameRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	Active      *bool  `json:"is_active"`
}

func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	active := req.Active == nil || *req.Active

	g, err := h.catalog.CreateGame(r.Context(), req.Name, req.Description, active)
	if err != nil {
		respondError(w, h.logger, "failed to create game", err)
		return
	}
	h.changed()
	writeJSON(w, http.StatusCreated, g)
}

func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req gameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	g, err := h.catalog.UpdateGame(r.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(w, h.logger, "failed to update game", err)
		return
	}
	if req.Active != nil && *req.Active != g.IsActive {
		g, err = h.catalog.SetGameActive(r.Context(), id, *req.Active)
		if err != nil {
			respondError(w, h.logger, "failed to update game", err)
			return
		}
	}
	h.changed()
	writeJSON(w, http.StatusOK, g)
}

type activeRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

func (h *GameHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := h.catalog.SetGameActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		respondError(w, h.logger, "failed to update game", err)
		return
	}
	h.changed()
	writeJSON(w, http.StatusOK, g)
}

func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteGame(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, h.logger, "failed to delete game", err)
		return
	}
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.SeedSample(r.Context())
	if err != nil {
		respondError(w, h.logger, "failed to seed catalog", err)
		return
	}
	h.changed()
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *GameHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.catalog.ListHosts(r.Context(), r.URL.Query().Get("game_id"))
	if err != nil {
		respondError(w, h.logger, "failed to list hosts", err)
		return
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (h *GameHandler) GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.catalog.GetHost(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, "failed to get host", err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

type hostRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	GameID string `json:"game_id" validate:"required"`
}

func (h *GameHandler) CreateHost(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	host, err := h.catalog.CreateHost(r.Context(), req.Name, req.GameID)
	if err != nil {
		respondError(w, h.logger, "failed to create host", err)
		return
	}
	writeJSON(w, http.StatusCreated, host)
}

func (h *GameHandler) SetHostActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	host, err := h.catalog.SetHostActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		respondError(w, h.logger, "failed to update host", err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

func (h *GameHandler) DeleteHost(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteHost(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, h.logger, "failed to delete host", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
