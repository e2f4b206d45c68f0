// Package checkin_api is the HTTP surface the staff UI talks to. It is a
// thin adapter over the check-in controller: request parsing, actor
// extraction, and the duplicate-scan guard live here, never engine logic.
package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/connectivity"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/qrgen"
)

// ScanGuard suppresses repeated camera reads of the same code within a
// short window. The engine itself is safe under repeated calls; this only
// spares the operator duplicate toasts.
type ScanGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type Handler struct {
	Controller  *checkin.Controller
	Monitor     *connectivity.Monitor
	Guard       ScanGuard // nil disables duplicate-scan suppression
	GuardWindow time.Duration
	QRGenerator *qrgen.Generator
	Logger      *logger.Logger
}

func NewHandler(controller *checkin.Controller, monitor *connectivity.Monitor, guard ScanGuard, guardWindow time.Duration, log *logger.Logger) *Handler {
	if guardWindow <= 0 {
		guardWindow = 3 * time.Second
	}
	return &Handler{
		Controller:  controller,
		Monitor:     monitor,
		Guard:       guard,
		GuardWindow: guardWindow,
		QRGenerator: qrgen.NewGenerator(256),
		Logger:      log,
	}
}

// Routes mounts the check-in endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.Status)
	r.Post("/events/{eventID}/select", h.SelectEvent)
	r.Post("/events/cache", h.CacheCurrentEvent)
	r.Post("/checkin", h.PerformCheckIn)
	r.Post("/sync", h.SyncNow)
	r.Get("/attendees/offline", h.OfflineAttendees)
	r.Post("/connectivity", h.Connectivity)
	r.Get("/tickets/{code}/qr", h.TicketQR)
}

// Status returns the controller snapshot the UI renders from.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.Controller.Snapshot())
}

// SelectEvent switches the session to the event in the URL.
func (h *Handler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		http.Error(w, "eventID is required", http.StatusBadRequest)
		return
	}

	if actor, err := auth.ActorFromRequest(r); err == nil {
		h.Controller.SetActor(checkin.Actor{UserID: actor.UserID, OrganizerID: actor.OrganizerID})
	}

	h.Controller.SelectEvent(r.Context(), eventID)
	h.respondJSON(w, http.StatusOK, h.Controller.Snapshot())
}

// CacheCurrentEvent downloads the selected event for offline use.
func (h *Handler) CacheCurrentEvent(w http.ResponseWriter, r *http.Request) {
	count, err := h.Controller.CacheCurrentEvent(r.Context())
	if err != nil {
		h.respondJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"ticket_count": count,
	})
}

// PerformCheckIn resolves one scanned or typed code.
// Body: {"code": "...", "undo": false}
func (h *Handler) PerformCheckIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
		Undo bool   `json:"undo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if actor, err := auth.ActorFromRequest(r); err == nil {
		h.Controller.SetActor(checkin.Actor{UserID: actor.UserID, OrganizerID: actor.OrganizerID})
	}

	if h.Guard != nil && !body.Undo {
		key := fmt.Sprintf("scan_guard:%s:%s", h.Controller.EventID(), body.Code)
		fresh, err := h.Guard.SetNX(r.Context(), key, time.Now().UTC().Format(time.RFC3339), h.GuardWindow).Result()
		if err == nil && !fresh {
			h.respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":   false,
				"duplicate": true,
				"message":   "Duplicate scan ignored.",
			})
			return
		}
		// A guard error never blocks a check-in; the engine is idempotent.
	}

	result := h.Controller.PerformCheckIn(r.Context(), body.Code, body.Undo)
	h.respondJSON(w, http.StatusOK, result)
}

// SyncNow triggers a manual sync pass.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result := h.Controller.SyncNow(r.Context())
	if result == nil {
		h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"message": "Sync already in progress.",
		})
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// OfflineAttendees lists the cached attendees for the selected event.
func (h *Handler) OfflineAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.Controller.GetOfflineAttendees(r.Context())
	if err != nil {
		http.Error(w, "Failed to read offline attendees: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, attendees)
}

// Connectivity ingests the host environment's reachability signal.
// Body: {"reachable": true}
func (h *Handler) Connectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reachable bool `json:"reachable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.Monitor.SetReachable(body.Reachable)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"reachable":       body.Reachable,
		"last_transition": h.Monitor.LastTransition(),
	})
}

// TicketQR renders a ticket code as a QR PNG for printed door lists.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	png, err := h.QRGenerator.PNG(code)
	if err != nil {
		http.Error(w, "Failed to generate QR: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
