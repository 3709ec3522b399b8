package handlers

import (
	"net/http"

	"chatapp-gateway/internal/service"
)

type messageBody struct {
	Content string `json:"content"`
}

func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	var body messageBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), userIDFrom(r), channelID, body.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, msg)
}

// GetMessageList pages through a channel's history, newest first.
func (h *Handlers) GetMessageList(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.fail(w, err)
		return
	}

	params, err := pageQuery(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	input := service.HistoryInput{Limit: params.limit, Cursor: params.cursor, CursorID: params.cursorID}
	page, err := h.chat.History(r.Context(), userIDFrom(r), channelID, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "messageID")
	if err != nil {
		h.fail(w, err)
		return
	}

	var body messageBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, err)
		return
	}

	msg, err := h.chat.EditMessage(r.Context(), userIDFrom(r), messageID, body.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, msg)
}

func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "messageID")
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.chat.DeleteMessage(r.Context(), userIDFrom(r), messageID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
