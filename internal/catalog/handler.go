// internal/catalog/handler.go
package catalog

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

// Routes mounts the book resource.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/books", h.handleList)
	r.Post("/books", h.handleCreate)
	r.Get("/books/{id}", h.handleGet)
	r.Put("/books/{id}", h.handleUpdate)
	r.Delete("/books/{id}", h.handleDelete)
	r.Post("/books/{id}/hold", h.handleHold)
	r.Post("/books/{id}/release", h.handleRelease)
	return r
}

func bookID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fault.Validation("invalid book id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	if books == nil {
		books = []*Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	book, err := h.service.AddBook(r.Context(), req)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	var upd BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, upd)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHold(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.HoldCopy(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.ReleaseCopy(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
