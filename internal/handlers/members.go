package handlers

import (
	"net/http"

	"chatapp-gateway/internal/service"
)

// GetMemberList pages through a server's members, newest first.
func (h *Handlers) GetMemberList(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.fail(w, err)
		return
	}

	params, err := pageQuery(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	input := service.ListMembersInput{Limit: params.limit, Cursor: params.cursor, CursorID: params.cursorID}
	page, err := h.chat.ListMembers(r.Context(), userIDFrom(r), serverID, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}
