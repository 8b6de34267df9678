package httpx

import (
	"net/http"

	"github.com/ariefcatur/beras-storefront/internal/address"
	"github.com/go-chi/chi/v5"
)

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	out, err := s.Addresses.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var in address.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.Addresses.Create(r.Context(), principal(r).UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var in address.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.Addresses.Update(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.Addresses.Delete(r.Context(), principal(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	a, err := s.Addresses.SetDefault(r.Context(), principal(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
