package service

import "chatapp-gateway/internal/models"

type ServerDeletedPayload struct {
	ServerID int64 `json:"serverId,string"`
}

type MemberJoinedPayload struct {
	ServerID int64         `json:"serverId,string"`
	Member   models.Member `json:"member"`
}

type MemberLeftPayload struct {
	ServerID int64 `json:"serverId,string"`
	UserID   int64 `json:"userId,string"`
}

type ChannelDeletedPayload struct {
	ChannelID int64 `json:"channelId,string"`
	ServerID  int64 `json:"serverId,string"`
}

type MessageDeletedPayload struct {
	MessageID int64 `json:"messageId,string"`
	ChannelID int64 `json:"channelId,string"`
}

type VoiceStatePayload struct {
	ServerID   int64             `json:"serverId,string"`
	VoiceState models.VoiceState `json:"voiceState"`
}

type VoiceLeftPayload struct {
	ServerID  int64 `json:"serverId,string"`
	ChannelID int64 `json:"channelId,string"`
	UserID    int64 `json:"userId,string"`
}
