package handlers

import (
	"net/http"

	"chatapp-gateway/internal/auth"
	"chatapp-gateway/internal/jwt"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var login auth.LoginInput
	if err := decodeJSON(w, r, &login); err != nil {
		h.fail(w, err)
		return
	}

	session, err := h.auth.Login(r.Context(), login)
	if err != nil {
		h.fail(w, err)
		return
	}

	http.SetCookie(w, &session.Cookie)
	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var registration auth.RegisterInput
	if err := decodeJSON(w, r, &registration); err != nil {
		h.fail(w, err)
		return
	}

	session, err := h.auth.Register(r.Context(), registration)
	if err != nil {
		h.fail(w, err)
		return
	}

	http.SetCookie(w, &session.Cookie)
	h.writeJSON(w, http.StatusCreated, session)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, jwt.ExpiredCookie())
	w.WriteHeader(http.StatusNoContent)
}
