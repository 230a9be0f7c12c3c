package api

import (
	"encoding/json"
	"net/http"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) getCredential(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.vault.Status(r.Context()))
}

// putCredential stores a new key and restarts its lifetime. The key itself
// is never echoed back, only its hint.
func (s *Server) putCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := validateCredential(req.APIKey); err != nil {
		writeMessage(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.vault.Save(r.Context(), req.APIKey); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.vault.Status(r.Context()))
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Invalidate(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
