package handlers

import (
	"net/http"

	"chatapp-gateway/internal/service"
)

func (h *Handlers) CreateServer(w http.ResponseWriter, r *http.Request) {
	var input service.CreateServerInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	server, err := h.chat.CreateServer(r.Context(), userIDFrom(r), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, server)
}

func (h *Handlers) GetServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	server, err := h.chat.GetServer(r.Context(), userIDFrom(r), serverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, server)
}

func (h *Handlers) UpdateServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	var input service.UpdateServerInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	server, err := h.chat.UpdateServer(r.Context(), userIDFrom(r), serverID, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, server)
}

func (h *Handlers) DeleteServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.chat.DeleteServer(r.Context(), userIDFrom(r), serverID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) JoinServer(w http.ResponseWriter, r *http.Request) {
	var input service.JoinServerInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	server, err := h.chat.JoinServer(r.Context(), userIDFrom(r), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, server)
}

func (h *Handlers) LeaveServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.chat.LeaveServer(r.Context(), userIDFrom(r), serverID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
