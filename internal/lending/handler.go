// internal/lending/handler.go
package lending

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

// Routes mounts the loan and return resources.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/loans", h.handleListLoans)
	r.Post("/loans", h.handleCreateLoan)
	r.Get("/loans/{id}", h.handleGetLoan)
	r.Put("/loans/{id}", h.handleEditLoan)
	r.Delete("/loans/{id}", h.handleDeleteLoan)
	r.Post("/loans/{id}/authorize", h.handleAuthorize)
	r.Post("/loans/{id}/reject", h.handleReject)
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Get("/returns", h.handleListReturns)
	r.Delete("/returns/{id}", h.handleDeleteReturn)
	return r
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fault.Validation("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	if loans == nil {
		loans = []*Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req NewLoan
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), req)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleEditLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	var req struct {
		LoanDate Date `json:"loan_date"`
		DueDate  Date `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
		return
	}

	loan, err := h.service.Edit(r.Context(), id, req.LoanDate, req.DueDate)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.DeleteLoan(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	loan, err := h.service.Authorize(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	loan, err := h.service.Reject(r.Context(), id)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	// Body is optional: an empty return date means "today".
	var req struct {
		ReturnDate Date   `json:"return_date"`
		Note       string `json:"note"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fault.WriteJSON(w, fault.Validation("invalid request body: %v", err))
			return
		}
	}

	ret, err := h.service.ProcessReturn(r.Context(), id, req.ReturnDate, req.Note)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (h *Handler) handleListReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := h.service.ListReturns(r.Context())
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}
	if returns == nil {
		returns = []*Return{}
	}
	writeJSON(w, http.StatusOK, returns)
}

func (h *Handler) handleDeleteReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fault.WriteJSON(w, err)
		return
	}

	if err := h.service.DeleteReturn(r.Context(), id); err != nil {
		fault.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
