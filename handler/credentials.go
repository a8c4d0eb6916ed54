package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/pipelineerr"
	"github.com/go-chi/chi/v5"
)

// CredentialHandler implements the create/revoke management endpoints
// from spec.md §4.6.
type CredentialHandler struct {
	store *auth.CredentialStore
}

// NewCredentialHandler wires a credential store into the handler.
func NewCredentialHandler(store *auth.CredentialStore) *CredentialHandler {
	return &CredentialHandler{store: store}
}

type createCredentialRequest struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// Create handles {name, tier=free?} -> 201 {id, secret, name, tier,
// createdAt, active}. Rejects a missing name with 400.
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pipelineerr.Write(w, pipelineerr.New(http.StatusBadRequest, "Malformed request body"))
		return
	}
	if req.Name == "" {
		pipelineerr.Write(w, pipelineerr.New(http.StatusBadRequest, "name is required"))
		return
	}

	cred, err := h.store.Create(req.Name, req.Tier)
	if err != nil {
		pipelineerr.Write(w, pipelineerr.New(http.StatusBadRequest, err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(cred)
}

// Revoke sets active=false by id, 404 if absent.
func (h *CredentialHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Revoke(id) {
		pipelineerr.Write(w, pipelineerr.New(http.StatusNotFound, "Credential not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

// List returns every credential, active or tombstoned, for operator review.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.store.List())
}
