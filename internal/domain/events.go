package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the standard frame exchanged between client and server over
// the websocket. Type selects the payload shape.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RawEnvelope defers payload decoding until the type is known.
type RawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client-to-server event types.
const (
	EventSendMessage       = "send_message"
	EventMessageRead       = "message_read"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventGetUserStatus     = "get_user_status"
)

// Server-to-client event types.
const (
	EventNewMessage          = "new_message"
	EventMessageSent         = "message_sent"
	EventMessageError        = "message_error"
	EventConversationMessage = "conversation_message"
	EventConversationJoined  = "conversation_joined"
	EventMessageReadReceipt  = "message_read_receipt"
	EventMessagesRead        = "messages_read"
	EventUserTyping          = "user_typing"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventUserStatusList      = "user_status_list"
	EventError               = "error"
)

// SendMessagePayload is the 'send_message' request. Content is encrypted for
// the receiver; SenderContent is the optional variant encrypted for the
// sender's own key. TempID is the client-generated correlation id for
// optimistic updates.
type SendMessagePayload struct {
	ReceiverID    uuid.UUID   `json:"receiverId"`
	Content       string      `json:"content"`
	SenderContent string      `json:"senderEncryptedContent,omitempty"`
	Kind          MessageKind `json:"messageType,omitempty"`
	TempID        string      `json:"tempId,omitempty"`
}

// MessageErrorPayload is the 'message_error' response carrying the
// correlation id of the send that failed.
type MessageErrorPayload struct {
	TempID  string `json:"tempId,omitempty"`
	Message string `json:"message"`
}

// MessageReadPayload is the 'message_read' request from a receiver.
type MessageReadPayload struct {
	MessageID string    `json:"messageId"`
	SenderID  uuid.UUID `json:"senderId"`
}

// ReadReceiptPayload is the 'message_read_receipt' notification to a sender.
type ReadReceiptPayload struct {
	MessageID string    `json:"messageId"`
	ReadBy    uuid.UUID `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}

// MessagesReadPayload is the batched receipt emitted when a receiver opens a
// conversation and all unread messages from one sender become read at once.
type MessagesReadPayload struct {
	ReadBy     uuid.UUID `json:"readBy"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

// ConversationPayload addresses a conversation by the other participant.
type ConversationPayload struct {
	OtherUserID uuid.UUID `json:"otherUserId"`
}

// ConversationJoinedPayload echoes a successful 'join_conversation'.
type ConversationJoinedPayload struct {
	RoomName    string    `json:"roomName"`
	OtherUserID uuid.UUID `json:"otherUserId"`
}

// TypingPayload is the 'user_typing' notification relayed to a conversation.
type TypingPayload struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsTyping bool      `json:"isTyping"`
}

// TypingRequestPayload is the inbound 'typing_start' / 'typing_stop' request.
type TypingRequestPayload struct {
	ReceiverID uuid.UUID `json:"receiverId"`
}

// PresencePayload is the 'user_online' / 'user_offline' broadcast.
type PresencePayload struct {
	UserID   uuid.UUID  `json:"userId"`
	Username string     `json:"username,omitempty"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UserStatusRequestPayload is the inbound 'get_user_status' request.
type UserStatusRequestPayload struct {
	UserIDs []uuid.UUID `json:"userIds"`
}

// UserStatus is one entry of the 'user_status_list' response.
type UserStatus struct {
	UserID   uuid.UUID  `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// ErrorPayload is the generic 'error' response.
type ErrorPayload struct {
	Message string `json:"message"`
}
