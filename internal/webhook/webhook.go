// Package webhook implements the external signal/command ingress of
// §6.3: a single POST endpoint accepting either a signal payload or a
// command payload, validated against a shared-secret header and applied
// through BotManager's existing operations.
package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/botmanager"
	"github.com/fluxtrade/perpbot/internal/model"
)

const secretHeader = "X-Webhook-Secret"

var (
	errInvalidSignal  = errors.New("webhook: signal must be one of LONG, SHORT, WAIT, CLOSE")
	errInvalidCommand = errors.New("webhook: unknown command")
)

// Command names accepted by a command payload.
const (
	CommandStart          = "start"
	CommandStop           = "stop"
	CommandPause          = "pause"
	CommandResume         = "resume"
	CommandEmergencyClose = "emergency_close"
)

// payload is the union of the two accepted shapes; exactly one of
// Signal or Command is set on any valid request.
type payload struct {
	BotName string `json:"botName"`

	Signal     string          `json:"signal"`
	Source     string          `json:"source"`
	Confidence float64         `json:"confidence"`
	Metadata   json.RawMessage `json:"metadata"`

	Command    string          `json:"command"`
	Parameters json.RawMessage `json:"parameters"`
}

// Handler validates the shared secret and dispatches each payload to
// every matching bot (all bots when botName is empty).
type Handler struct {
	manager *botmanager.BotManager
	secret  string
}

// New builds a Handler. An empty secret disables the header check,
// matching the spec's "out-of-scope" framing for authentication —
// callers running with a configured secret get it enforced.
func New(manager *botmanager.BotManager, secret string) *Handler {
	return &Handler{manager: manager, secret: secret}
}

// ServeHTTP implements http.Handler so this can be mounted directly on a
// mux.Router or the stdlib ServeMux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" && r.Header.Get(secretHeader) != h.secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case p.Signal != "":
		err = h.handleSignal(p)
	case p.Command != "":
		err = h.handleCommand(r, p)
	default:
		http.Error(w, "payload must set either signal or command", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleSignal is observational only: a webhook-sourced signal logs but
// does not itself place a trade, since BotInstance's own ensemble is the
// sole source of truth for entries (§4.2 step 2).
func (h *Handler) handleSignal(p payload) error {
	kind := model.SignalKind(p.Signal)
	switch kind {
	case model.SignalLong, model.SignalShort, model.SignalWait:
	case "CLOSE":
	default:
		return errInvalidSignal
	}
	log.Info().
		Str("bot", p.BotName).
		Str("signal", p.Signal).
		Str("source", p.Source).
		Float64("confidence", p.Confidence).
		Msg("webhook signal received")
	return nil
}

func (h *Handler) handleCommand(r *http.Request, p payload) error {
	names := []string{p.BotName}
	if p.BotName == "" {
		names = h.allBotNames()
	}

	for _, name := range names {
		instance := h.manager.GetBot(name)
		if instance == nil {
			continue
		}
		switch p.Command {
		case CommandStart:
			if err := h.manager.StartBot(r.Context(), name); err != nil {
				return err
			}
		case CommandStop:
			if err := h.manager.StopBot(r.Context(), name); err != nil {
				return err
			}
		case CommandPause:
			if err := h.manager.PauseBot(name); err != nil {
				return err
			}
		case CommandResume:
			if err := h.manager.ResumeBot(name); err != nil {
				return err
			}
		case CommandEmergencyClose:
			instance.EmergencyClose()
		default:
			return errInvalidCommand
		}
	}
	return nil
}

func (h *Handler) allBotNames() []string {
	summary := h.manager.GetSummary()
	names := make([]string, 0, len(summary.Bots))
	for _, b := range summary.Bots {
		names = append(names, b.Name)
	}
	return names
}
