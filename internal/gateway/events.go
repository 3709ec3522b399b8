package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chatapp-gateway/internal/models"
)

const (
	EventReady          = "ready"
	EventReadyAck       = "ready:ack"
	EventError          = "error"
	EventMessageSend    = "message:send"
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
	EventTypingStart    = "typing:start"
	EventTypingUpdate   = "typing:update"
	EventPresenceUpdate = "presence:update"
	EventPresenceChange = "presence:changed"

	EventServerUpdated      = "server:updated"
	EventServerDeleted      = "server:deleted"
	EventServerJoined       = "server:joined"
	EventServerMemberJoined = "server:member-joined"
	EventServerMemberLeft   = "server:member-left"

	EventChannelCreated = "channel:created"
	EventChannelUpdated = "channel:updated"
	EventChannelDeleted = "channel:deleted"

	EventVoiceUserJoined   = "voice:user-joined"
	EventVoiceUserLeft     = "voice:user-left"
	EventVoiceStateUpdated = "voice:state-updated"
)

func ServerRoom(id int64) string  { return fmt.Sprintf("server:%d", id) }
func ChannelRoom(id int64) string { return fmt.Sprintf("channel:%d", id) }
func UserRoom(id int64) string    { return fmt.Sprintf("user:%d", id) }

// EncodeFrame builds a text frame: the event name, a newline, then the
// payload as JSON.
func EncodeFrame(event string, payload any) ([]byte, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(event) + 1 + len(jsonBytes))
	buf.WriteString(event)
	buf.WriteByte('\n')
	buf.Write(jsonBytes)
	return buf.Bytes(), nil
}

// DecodeFrame splits a frame into its event name and raw payload. The payload
// may be empty.
func DecodeFrame(frame []byte) (string, json.RawMessage, error) {
	event, payload, _ := bytes.Cut(frame, []byte{'\n'})
	event = bytes.TrimSpace(event)
	if len(event) == 0 {
		return "", nil, fmt.Errorf("frame has no event name")
	}
	return string(event), json.RawMessage(bytes.TrimSpace(payload)), nil
}

type PresencePayload struct {
	UserID int64                 `json:"userId,string"`
	Status models.PresenceStatus `json:"status"`
}

type TypingPayload struct {
	ChannelID int64 `json:"channelId,string"`
	UserID    int64 `json:"userId,string"`
}

type messageSendPayload struct {
	ChannelID int64  `json:"channelId,string"`
	Content   string `json:"content"`
}

type typingStartPayload struct {
	ChannelID int64 `json:"channelId,string"`
}

type presenceUpdatePayload struct {
	Status models.PresenceStatus `json:"status"`
}
