package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atvirokodosprendimai/hostledger/internal/inventory"
	"github.com/atvirokodosprendimai/hostledger/internal/spec"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the /clients resource.
type Handler struct {
	svc    *inventory.Service
	logger *zap.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   inventory.Kind `json:"error"`
	Message string         `json:"message"`
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Client inventory API. Use /clients/ to manage clients, computers and ports."})
}

func (h *Handler) createClients(w http.ResponseWriter, r *http.Request) {
	var entries []spec.ClientSpec
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, &inventory.Fault{Kind: inventory.KindInvalidInput, Message: "invalid data format", Err: err})
		return
	}
	if err := h.svc.CreateClients(r.Context(), entries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Clients and computers created successfully"})
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListClients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(views) == 0 {
		writeJSON(w, http.StatusOK, messageResponse{Message: "No clients found"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.svc.GetClient(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var patch spec.ClientPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, &inventory.Fault{Kind: inventory.KindInvalidInput, Message: "invalid data format", Err: err})
		return
	}
	if err := h.svc.UpdateClient(r.Context(), name, patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Client '%s' updated successfully", name)})
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	name, err := clientName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.DeleteClient(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Client '%s' deleted successfully", name)})
}

// clientName returns the decoded {clientName} segment. chi matches on the raw path
// when the request carries escaped slashes, so the segment may still be encoded.
func clientName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "clientName")
	if r.URL.RawPath == "" {
		return name, nil
	}
	name, err := url.PathUnescape(name)
	if err != nil {
		return "", &inventory.Fault{Kind: inventory.KindInvalidInput, Message: "malformed client name", Err: err}
	}
	return name, nil
}

// StatusFor maps a fault kind to an HTTP status code.
func StatusFor(kind inventory.Kind) int {
	switch kind {
	case inventory.KindInvalidInput:
		return http.StatusBadRequest
	case inventory.KindNotFound:
		return http.StatusNotFound
	case inventory.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := inventory.KindOf(err)
	writeJSON(w, StatusFor(kind), errorResponse{Error: kind, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
