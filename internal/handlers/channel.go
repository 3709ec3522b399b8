package handlers

import (
	"net/http"

	"chatapp-gateway/internal/service"
)

func (h *Handlers) CreateChannel(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	var input service.CreateChannelInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	input.ServerID = serverID

	channel, err := h.chat.CreateChannel(r.Context(), userIDFrom(r), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, channel)
}

func (h *Handlers) GetChannelList(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	channels, err := h.chat.ListChannels(r.Context(), userIDFrom(r), serverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channels)
}

func (h *Handlers) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	var input service.UpdateChannelInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	channel, err := h.chat.UpdateChannel(r.Context(), userIDFrom(r), channelID, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channel)
}

func (h *Handlers) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.chat.DeleteChannel(r.Context(), userIDFrom(r), channelID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
