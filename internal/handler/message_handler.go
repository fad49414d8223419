package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/robaro12345/SafeTalk/internal/delivery"
	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/receipt"
	"github.com/robaro12345/SafeTalk/internal/service"
)

// MessageHandler serves the REST message surface: conversation history, the
// conversation list, sends for clients without a live socket, and deletes.
type MessageHandler struct {
	pipeline *delivery.Pipeline
	tracker  *receipt.Tracker
	store    service.IMessageRepository
	users    service.IUserService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(pipeline *delivery.Pipeline, tracker *receipt.Tracker, store service.IMessageRepository, users service.IUserService) *MessageHandler {
	return &MessageHandler{pipeline: pipeline, tracker: tracker, store: store, users: users}
}

// SendMessage handles POST /api/messages/send. The pipeline still pushes to
// the receiver's live connections; only the sender-side confirmation travels
// on the HTTP response instead of a socket event.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req domain.SendMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.pipeline.Send(r.Context(), nil, user, req)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrInvalidRecipient):
			writeError(w, http.StatusBadRequest, "cannot send message to yourself")
		case errors.Is(err, delivery.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "missing required message data")
		case errors.Is(err, delivery.ErrRecipientNotFound):
			writeError(w, http.StatusNotFound, "recipient not found")
		default:
			log.Printf("REST send from %s: %v", user.Username, err)
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: "Message sent successfully",
		Data:    msg.ViewFor(user.ID, user.Ref(), req.TempID),
	})
}

// GetConversation handles GET /api/messages/conversation/{userID}. Fetching
// a page marks every unread message from that user read in one batch, which
// is what triggers the batched receipt to the sender.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	otherID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	other, err := h.users.GetUserByID(otherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if other == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	messages, err := h.store.FindConversation(r.Context(), user.ID, otherID, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	if _, err := h.tracker.ReadConversation(r.Context(), user.ID, otherID); err != nil {
		// Degrade: history still renders, statuses catch up on the next
		// fetch.
		log.Printf("bulk read-advance %s/%s: %v", user.ID, otherID, err)
	}

	views := make([]domain.View, 0, len(messages))
	for _, m := range messages {
		ref := other.Ref()
		if m.SenderID == user.ID {
			ref = user.Ref()
		}
		views = append(views, m.ViewFor(user.ID, ref, ""))
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{
		"messages": views,
		"pagination": map[string]interface{}{
			"page":    page,
			"limit":   limit,
			"hasMore": int64(len(messages)) == limit,
		},
		"conversation": map[string]interface{}{
			"otherUser": other.Ref(),
		},
	}})
}

// GetConversations handles GET /api/messages/conversations: the sidebar
// list, one row per counterparty with last message and unread count.
func (h *MessageHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	summaries, err := h.store.FindRecentPerCounterparty(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}

	type row struct {
		Counterparty domain.UserRef `json:"counterparty"`
		LastMessage  domain.View    `json:"lastMessage"`
		UnreadCount  int64          `json:"unreadCount"`
	}
	rows := make([]row, 0, len(summaries))
	for _, s := range summaries {
		ref := domain.UserRef{ID: s.Counterparty, Username: s.Username}
		if ref.Username == "" {
			if u, err := h.users.GetUserByID(s.Counterparty); err == nil && u != nil {
				ref.Username = u.Username
			}
		}
		rows = append(rows, row{
			Counterparty: ref,
			LastMessage:  s.LastMessage.ViewFor(user.ID, domain.UserRef{ID: s.LastMessage.SenderID}, ""),
			UnreadCount:  s.UnreadCount,
		})
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{
		"conversations": rows,
	}})
}

// DeleteMessage handles DELETE /api/messages/{id}. Soft delete only.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	id := mux.Vars(r)["id"]

	changed, err := h.store.SoftDelete(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Message deleted"})
}

func queryInt(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}
