// Package adminapi implements the net/http admin REST surface: bot
// list/get/create/delete plus start/stop/pause/resume/emergency-close
// control, as thin JSON handlers over BotManager's operations. There is
// no update endpoint; a bot's config cannot be changed once created.
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/botmanager"
	"github.com/fluxtrade/perpbot/internal/model"
)

// Handler wires BotManager's operations to the bot CRUD/control contract.
type Handler struct {
	manager *botmanager.BotManager
}

// New builds a Handler over manager.
func New(manager *botmanager.BotManager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts every endpoint onto router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/bots", h.ListBots).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/bots", h.CreateBot).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/{name}", h.GetBot).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/bots/{name}", h.DeleteBot).Methods(http.MethodDelete)

	router.HandleFunc("/api/v1/bots/{name}/start", h.StartBot).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/{name}/stop", h.StopBot).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/{name}/pause", h.PauseBot).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/{name}/resume", h.ResumeBot).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/{name}/emergency-close", h.EmergencyCloseBot).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/bots/start-all", h.StartAll).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/bots/stop-all", h.StopAll).Methods(http.MethodPost)
}

// createBotRequest is the CreateBot request body.
type createBotRequest struct {
	BotName     string `json:"botName"`
	Symbol      string `json:"symbol"`
	RiskLevel   string `json:"riskLevel"`
	IsTestnet   bool   `json:"isTestnet"`
	Description string `json:"description"`
}

// ListBots handles GET /api/v1/bots.
func (h *Handler) ListBots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetSummary())
}

// CreateBot handles POST /api/v1/bots.
func (h *Handler) CreateBot(w http.ResponseWriter, r *http.Request) {
	var req createBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	riskLevel := model.RiskLevel(req.RiskLevel)
	if riskLevel == "" {
		riskLevel = model.RiskMedium
	}

	cfg, err := model.NewBotConfig(req.BotName, req.Symbol, riskLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.IsTestnet = req.IsTestnet
	cfg.Description = req.Description

	if err := h.manager.AddBot(cfg); err != nil {
		if errors.Is(err, botmanager.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

// GetBot handles GET /api/v1/bots/{name}.
func (h *Handler) GetBot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	instance := h.manager.GetBot(name)
	if instance == nil {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	writeJSON(w, http.StatusOK, instance.Snapshot())
}

// DeleteBot handles DELETE /api/v1/bots/{name}. A running bot cannot be
// deleted; callers must stop it first.
func (h *Handler) DeleteBot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	instance := h.manager.GetBot(name)
	if instance == nil {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	if instance.Snapshot().IsRunning {
		writeError(w, http.StatusConflict, "bot is running, stop it before deleting")
		return
	}
	if err := h.manager.RemoveBot(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartBot handles POST /api/v1/bots/{name}/start.
func (h *Handler) StartBot(w http.ResponseWriter, r *http.Request) {
	h.controlOp(w, r, h.manager.StartBot)
}

// StopBot handles POST /api/v1/bots/{name}/stop.
func (h *Handler) StopBot(w http.ResponseWriter, r *http.Request) {
	h.controlOp(w, r, h.manager.StopBot)
}

// PauseBot handles POST /api/v1/bots/{name}/pause.
func (h *Handler) PauseBot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.manager.PauseBot(name); err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeSnapshot(w, name)
}

// ResumeBot handles POST /api/v1/bots/{name}/resume.
func (h *Handler) ResumeBot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.manager.ResumeBot(name); err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeSnapshot(w, name)
}

// EmergencyCloseBot handles POST /api/v1/bots/{name}/emergency-close.
func (h *Handler) EmergencyCloseBot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	instance := h.manager.GetBot(name)
	if instance == nil {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	instance.EmergencyClose()
	h.writeSnapshot(w, name)
}

// StartAll handles POST /api/v1/bots/start-all.
func (h *Handler) StartAll(w http.ResponseWriter, r *http.Request) {
	h.manager.StartAll(r.Context())
	writeJSON(w, http.StatusOK, h.manager.GetSummary())
}

// StopAll handles POST /api/v1/bots/stop-all.
func (h *Handler) StopAll(w http.ResponseWriter, r *http.Request) {
	h.manager.StopAll(r.Context())
	writeJSON(w, http.StatusOK, h.manager.GetSummary())
}

func (h *Handler) controlOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, name string) error) {
	name := mux.Vars(r)["name"]
	if err := op(r.Context(), name); err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeSnapshot(w, name)
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, name string) {
	instance := h.manager.GetBot(name)
	if instance == nil {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	writeJSON(w, http.StatusOK, instance.Snapshot())
}

func (h *Handler) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, botmanager.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, botmanager.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("adminapi: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
