package service

import (
	"context"
	"strings"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/store"
)

type messageContent struct {
	Content string `json:"content" validate:"required,notblank,max=4000"`
}

type HistoryInput struct {
	Limit    int   `json:"limit" validate:"min=1,max=100"`
	Cursor   int64 `json:"cursor" validate:"min=0"`
	CursorID int64 `json:"cursorId,string" validate:"min=0"`
}

// SendMessage posts a text message to a channel of a server the caller
// belongs to. It serves both the REST route and the gateway's message:send.
func (s *Service) SendMessage(ctx context.Context, userID int64, channelID int64, content string) (models.Message, error) {
	input := messageContent{Content: strings.TrimSpace(content)}
	if err := s.validate.Struct(input); err != nil {
		return models.Message{}, err
	}

	if _, _, err := s.channelForMember(ctx, userID, channelID); err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.CreateMessage(ctx, channelID, userID, input.Content, models.MessageTypeText)
	if err != nil {
		return models.Message{}, err
	}

	s.notify.Emit(gateway.ChannelRoom(channelID), gateway.EventMessageNew, msg)
	return msg, nil
}

// History returns one page of the channel's messages, newest first.
func (s *Service) History(ctx context.Context, userID int64, channelID int64, input HistoryInput) (Page[models.Message], error) {
	if input.Limit == 0 {
		input.Limit = DefaultMessageLimit
	}
	if err := s.validate.Struct(input); err != nil {
		return Page[models.Message]{}, err
	}

	if _, _, err := s.channelForMember(ctx, userID, channelID); err != nil {
		return Page[models.Message]{}, err
	}

	messages, err := s.store.ListMessages(ctx, channelID, input.Limit+1, store.Cursor{At: input.Cursor, ID: input.CursorID})
	if err != nil {
		return Page[models.Message]{}, err
	}
	return paginate(messages, input.Limit, func(m models.Message) store.Cursor {
		return store.Cursor{At: m.CreatedAt, ID: m.ID}
	}), nil
}

func (s *Service) EditMessage(ctx context.Context, userID int64, messageID int64, content string) (models.Message, error) {
	input := messageContent{Content: strings.TrimSpace(content)}
	if err := s.validate.Struct(input); err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.UserID != userID {
		return models.Message{}, apperror.Forbidden("You can only edit your own messages")
	}

	msg, err = s.store.UpdateMessageContent(ctx, messageID, input.Content)
	if err != nil {
		return models.Message{}, err
	}

	s.notify.Emit(gateway.ChannelRoom(msg.ChannelID), gateway.EventMessageUpdated, msg)
	return msg, nil
}

// DeleteMessage lets the author, or an owner or admin of the server, remove a
// message.
func (s *Service) DeleteMessage(ctx context.Context, userID int64, messageID int64) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.UserID != userID {
		channel, err := s.store.GetChannel(ctx, msg.ChannelID)
		if err != nil {
			return err
		}
		if _, err := s.requireManager(ctx, userID, channel.ServerID); err != nil {
			return err
		}
	}

	deleted, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("message")
	}

	s.notify.Emit(gateway.ChannelRoom(msg.ChannelID), gateway.EventMessageDeleted, MessageDeletedPayload{MessageID: messageID, ChannelID: msg.ChannelID})
	return nil
}
