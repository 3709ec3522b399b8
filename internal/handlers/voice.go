package handlers

import (
	"net/http"

	"chatapp-gateway/internal/service"
)

func (h *Handlers) JoinVoice(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	state, err := h.chat.JoinVoice(r.Context(), userIDFrom(r), channelID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) GetVoiceOccupants(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	states, err := h.chat.VoiceOccupants(r.Context(), userIDFrom(r), channelID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, states)
}

func (h *Handlers) LeaveVoice(w http.ResponseWriter, r *http.Request) {
	if _, err := h.chat.LeaveVoice(r.Context(), userIDFrom(r)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateVoiceState(w http.ResponseWriter, r *http.Request) {
	var input service.VoiceFlagsInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	state, err := h.chat.UpdateVoiceFlags(r.Context(), userIDFrom(r), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}
