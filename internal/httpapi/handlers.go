package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go-session-agent/internal/access"
	"go-session-agent/internal/authn"
	"go-session-agent/internal/event"
	"go-session-agent/internal/guard"
	"go-session-agent/internal/model"
	"go-session-agent/internal/monitor"
	"go-session-agent/internal/state"
)

// Handler serves the local API consumed by UI collaborators.
type Handler struct {
	auth          *authn.Authenticator
	machine       *state.Machine
	monitor       *monitor.Monitor
	bus           *event.Bus
	allowWildcard bool
}

func NewHandler(auth *authn.Authenticator, machine *state.Machine, mon *monitor.Monitor, bus *event.Bus, allowWildcard bool) *Handler {
	return &Handler{
		auth:          auth,
		machine:       machine,
		monitor:       mon,
		bus:           bus,
		allowWildcard: allowWildcard,
	}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	if strings.TrimSpace(req.Provider) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, fmt.Errorf("%w: provider and code are required", model.ErrInvalidInput))
		return
	}

	user, err := h.auth.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"user":  user,
		"state": h.machine.Snapshot(),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context())
	writeSuccess(w, http.StatusOK, h.machine.Snapshot())
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"user":  user,
		"state": h.machine.Snapshot(),
	})
}

// State returns the auth snapshot. Ungated: the UI needs it to decide
// whether to show the login page.
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.machine.Snapshot())
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := guard.UserFromContext(r.Context())
	writeSuccess(w, http.StatusOK, user)
}

// Countdowns returns the monitor snapshot for rendering warning banners.
func (h *Handler) Countdowns(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.monitor.Snapshot())
}

// Activity records a user-interaction signal, resetting the idle countdown.
func (h *Handler) Activity(w http.ResponseWriter, _ *http.Request) {
	h.monitor.RecordActivity()
	writeSuccess(w, http.StatusOK, h.monitor.Snapshot())
}

// Extend handles the "stay logged in" confirmation.
func (h *Handler) Extend(w http.ResponseWriter, _ *http.Request) {
	h.monitor.ExtendSession()
	writeSuccess(w, http.StatusOK, h.monitor.Snapshot())
}

// Events returns the retained security event history.
func (h *Handler) Events(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.bus.History())
}

type checkRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type checkBatchRequest struct {
	Requests []access.Request `json:"requests"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	decision := access.Check(h.machine.CurrentUser(), req.Resource, req.Action, h.allowWildcard)
	writeSuccess(w, http.StatusOK, decision)
}

func (h *Handler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	var req checkBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	decisions := access.CheckAll(h.machine.CurrentUser(), req.Requests, h.allowWildcard)

	// Maps keyed by struct don't serialize; flatten for the wire.
	out := make([]map[string]any, 0, len(req.Requests))
	for _, request := range req.Requests {
		decision := decisions[request]
		out = append(out, map[string]any{
			"resource": request.Resource,
			"action":   request.Action,
			"allowed":  decision.Allowed,
			"reason":   decision.Reason,
		})
	}

	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) CheckAny(w http.ResponseWriter, r *http.Request) {
	var req checkBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
		return
	}

	decision := access.CheckAny(h.machine.CurrentUser(), req.Requests, h.allowWildcard)
	writeSuccess(w, http.StatusOK, decision)
}
