package service

import (
	"context"
	"strings"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/store"
)

type CreateChannelInput struct {
	ServerID int64              `json:"serverId,string" validate:"required"`
	Name     string             `json:"name" validate:"required,notblank,max=100"`
	Type     models.ChannelType `json:"type" validate:"omitempty,oneof=text voice"`
	Topic    *string            `json:"topic" validate:"omitempty,max=1024"`
}

type UpdateChannelInput struct {
	Name     *string `json:"name" validate:"omitempty,notblank,max=100"`
	Topic    *string `json:"topic" validate:"omitempty,max=1024"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
}

func (s *Service) CreateChannel(ctx context.Context, userID int64, input CreateChannelInput) (models.Channel, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Type == "" {
		input.Type = models.ChannelTypeText
	}
	if err := s.validate.Struct(input); err != nil {
		return models.Channel{}, err
	}

	if _, err := s.store.GetServer(ctx, input.ServerID); err != nil {
		return models.Channel{}, err
	}
	if _, err := s.requireManager(ctx, userID, input.ServerID); err != nil {
		return models.Channel{}, err
	}

	channel, err := s.store.CreateChannel(ctx, input.ServerID, input.Name, input.Type, input.Topic)
	if err != nil {
		return models.Channel{}, err
	}
	s.sugar.Debugf("User ID [%d] created channel ID [%d] in server ID [%d]", userID, channel.ID, channel.ServerID)

	s.notify.Emit(gateway.ServerRoom(channel.ServerID), gateway.EventChannelCreated, channel)
	s.notify.AttachChannel(channel.ServerID, channel.ID)
	return channel, nil
}

// ListChannels returns the server's channels in display order.
func (s *Service) ListChannels(ctx context.Context, userID int64, serverID int64) ([]models.Channel, error) {
	if _, err := s.store.GetServer(ctx, serverID); err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, userID, serverID); err != nil {
		return nil, err
	}
	return s.store.ListChannels(ctx, serverID)
}

func (s *Service) UpdateChannel(ctx context.Context, userID int64, channelID int64, input UpdateChannelInput) (models.Channel, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if err := s.validate.Struct(input); err != nil {
		return models.Channel{}, err
	}

	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return models.Channel{}, err
	}
	if _, err := s.requireManager(ctx, userID, channel.ServerID); err != nil {
		return models.Channel{}, err
	}

	channel, err = s.store.UpdateChannel(ctx, channelID, store.ChannelUpdate{Name: input.Name, Topic: input.Topic, Position: input.Position})
	if err != nil {
		return models.Channel{}, err
	}

	s.notify.Emit(gateway.ServerRoom(channel.ServerID), gateway.EventChannelUpdated, channel)
	return channel, nil
}

// DeleteChannel removes the channel. Voice occupants are announced as having
// left before the channel itself is announced as gone.
func (s *Service) DeleteChannel(ctx context.Context, userID int64, channelID int64) error {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if _, err := s.requireManager(ctx, userID, channel.ServerID); err != nil {
		return err
	}

	var occupants []models.VoiceState
	if channel.Type == models.ChannelTypeVoice {
		occupants, err = s.store.ListVoiceStatesByChannel(ctx, channelID)
		if err != nil {
			return err
		}
	}

	deleted, err := s.store.DeleteChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("channel")
	}
	s.sugar.Debugf("User ID [%d] deleted channel ID [%d]", userID, channelID)

	room := gateway.ServerRoom(channel.ServerID)
	for _, state := range occupants {
		s.notify.Emit(room, gateway.EventVoiceUserLeft, VoiceLeftPayload{ServerID: channel.ServerID, ChannelID: channelID, UserID: state.UserID})
	}
	s.notify.Emit(room, gateway.EventChannelDeleted, ChannelDeletedPayload{ChannelID: channelID, ServerID: channel.ServerID})
	s.notify.DropChannel(channelID)
	return nil
}
