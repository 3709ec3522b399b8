package handlers

import (
	"net/http"

	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

// GetUserInfo returns the caller's full profile for "me" and the public part
// of anybody else's.
func (h *Handlers) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	requestedUserID := userID
	if chi.URLParam(r, "userID") != "me" {
		var err error
		requestedUserID, err = pathID(r, "userID")
		if err != nil {
			h.fail(w, err)
			return
		}
	}

	user, err := h.chat.GetUser(r.Context(), requestedUserID)
	if err != nil {
		h.fail(w, err)
		return
	}

	if requestedUserID != userID {
		h.writeJSON(w, http.StatusOK, models.Author{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL})
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateUserInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}

	user, err := h.chat.UpdateUser(r.Context(), userIDFrom(r), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
