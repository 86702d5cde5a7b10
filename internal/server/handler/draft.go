package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/order"
)

// DraftDesk defines the methods the draft handler requires from the order
// desk. It is declared locally so the handler can be tested with a stub.
type DraftDesk interface {
	Open() (domain.OrderDraft, error)
	Get(id string) (domain.OrderDraft, error)
	Update(id string, p order.Patch) (domain.OrderDraft, error)
	QuickFill(id string, percent int) (domain.OrderDraft, error)
	Submit(ctx context.Context, id string) (domain.OrderRecord, domain.OrderDraft, error)
	Close(id string) error
}

// DraftHandler serves the order form endpoints.
type DraftHandler struct {
	desk   DraftDesk
	logger *slog.Logger
}

// NewDraftHandler creates a DraftHandler with the given desk and logger.
func NewDraftHandler(desk DraftDesk, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		desk:   desk,
		logger: logHandler(logger, "drafts"),
	}
}

// CreateDraft opens a fresh order form seeded from the reference price.
// POST /api/drafts
func (h *DraftHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.desk.Open()
	if err != nil {
		writeDomainError(w, r, h.logger, "open draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDraft returns a single draft.
// GET /api/drafts/{id}
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.desk.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDraft applies a partial edit. Fields absent from the body are left
// as they are; an invalid enum rejects the whole edit.
// PATCH /api/drafts/{id}
func (h *DraftHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var p order.Patch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	d, err := h.desk.Update(pathParam(r, "id"), p)
	if err != nil {
		writeDomainError(w, r, h.logger, "update draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type quickFillRequest struct {
	Percent int `json:"percent"`
}

// QuickFill sizes the amount as a share of the available balance.
// POST /api/drafts/{id}/quickfill
func (h *DraftHandler) QuickFill(w http.ResponseWriter, r *http.Request) {
	var req quickFillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	d, err := h.desk.QuickFill(pathParam(r, "id"), req.Percent)
	if err != nil {
		writeDomainError(w, r, h.logger, "quick fill", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type submitResponse struct {
	Order domain.OrderRecord `json:"order"`
	Draft domain.OrderDraft  `json:"draft"`
}

// SubmitDraft emits the draft as an order record and resets its amount.
// A draft without a positive amount is rejected with 422.
// POST /api/drafts/{id}/submit
func (h *DraftHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	rec, d, err := h.desk.Submit(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "submit draft", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Order: rec, Draft: d})
}

// DeleteDraft discards a draft.
// DELETE /api/drafts/{id}
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Close(pathParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, "close draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
