// internal/membership/handler.go
package membership

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"librarium/internal/fault"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the reader directory and its notifications.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/readers", h.handleList)
	r.Post("/readers", h.handleRegister)
	r.Post("/readers/login", h.handleLogin)
	r.Get("/readers/{id}", h.handleGet)
	r.Put("/readers/{id}", h.handleUpdate)
	r.Delete("/readers/{id}", h.handleDelete)
	r.Get("/readers/{id}/notifications", h.handleListNotifications)
	r.Post("/readers/{id}/notifications", h.handleNotify)
	return r
}

func readerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fault.Validation("invalid reader id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	readers, err := h.service.ListReaders(r.Context())
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	if readers == nil {
		readers = []*Reader{}
	}
	writeJSON(w, http.StatusOK, readers)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	reader, err := h.service.RegisterReader(r.Context(), req)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reader)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	reader, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if fault.IsKind(err, fault.KindValidation) {
			// Invalid credentials answer 401, not 400.
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"code":  string(fault.KindValidation),
				"error": "invalid credentials",
			})
			return
		}
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := readerID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	reader, err := h.service.GetReader(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := readerID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	var upd ReaderUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	reader, err := h.service.UpdateReader(r.Context(), id, upd)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reader)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := readerID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.DeleteReader(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	id, err := readerID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	var req struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	notification, err := h.service.Notify(r.Context(), id, req.Message, req.Severity)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notification)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := readerID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	if notifications == nil {
		notifications = []*Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}
