package http

import (
	"net/http"
	"strconv"

	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/internal/chat/ws"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

type HistoryHandler struct {
	MessageService *service.MessageService
}

// ServeHTTP returns one page of the conversation with the user in the path.
// Pages count back from the newest message; each page reads oldest first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	partnerID := r.PathValue("userID")
	if partnerID == "" {
		writeError(w, http.StatusBadRequest, "Missing user id", "")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	msgs, err := h.MessageService.History(ctx, httpx.UserIDFromCtx(ctx), partnerID, limit, offset)
	if err != nil {
		log.Error("failed to load history", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type ContactsHandler struct {
	MessageService *service.MessageService
}

func (h *ContactsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	contacts, err := h.MessageService.Contacts(ctx, httpx.UserIDFromCtx(ctx))
	if err != nil {
		log.Error("failed to load contacts", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load contacts", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

type OnlineUsersHandler struct {
	Hub *ws.Hub
}

func (h *OnlineUsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ids := h.Hub.OnlineUserIDs(httpx.UserIDFromCtx(r.Context()))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"onlineUsers": ids})
}
