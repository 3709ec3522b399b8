package service

import (
	"context"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/models"
)

type VoiceFlagsInput struct {
	SelfMute bool `json:"selfMute"`
	SelfDeaf bool `json:"selfDeaf"`
}

// JoinVoice moves the caller into a voice channel. A user is in at most one
// voice channel, so joining displaces any previous occupancy; the old
// channel's server hears voice:user-left before the new one hears
// voice:user-joined. The returned state carries the private session token.
func (s *Service) JoinVoice(ctx context.Context, userID int64, channelID int64) (models.VoiceState, error) {
	channel, _, err := s.channelForMember(ctx, userID, channelID)
	if err != nil {
		return models.VoiceState{}, err
	}
	if channel.Type != models.ChannelTypeVoice {
		return models.VoiceState{}, apperror.BadRequest("This is not a voice channel")
	}

	state, previousChannelID, err := s.store.UpsertVoiceState(ctx, channelID, userID, s.newSessionID())
	if err != nil {
		if apperror.Is(err, apperror.KindInvariantViolation) {
			s.sugar.Error(err)
		}
		return models.VoiceState{}, err
	}
	s.sugar.Debugf("User ID [%d] joined voice channel ID [%d]", userID, channelID)

	if previousChannelID != 0 {
		previous, err := s.store.GetChannel(ctx, previousChannelID)
		if err == nil {
			s.notify.Emit(gateway.ServerRoom(previous.ServerID), gateway.EventVoiceUserLeft,
				VoiceLeftPayload{ServerID: previous.ServerID, ChannelID: previousChannelID, UserID: userID})
		} else if !apperror.Is(err, apperror.KindNotFound) {
			s.sugar.Error(err)
		}
	}

	public := state
	public.SessionID = ""
	s.notify.Emit(gateway.ServerRoom(channel.ServerID), gateway.EventVoiceUserJoined, VoiceStatePayload{ServerID: channel.ServerID, VoiceState: public})

	return state, nil
}

// LeaveVoice ends the caller's voice occupancy, if any.
func (s *Service) LeaveVoice(ctx context.Context, userID int64) (models.VoiceState, error) {
	state, err := s.store.RemoveVoiceState(ctx, userID)
	if err != nil {
		return models.VoiceState{}, err
	}
	s.sugar.Debugf("User ID [%d] left voice channel ID [%d]", userID, state.ChannelID)

	channel, err := s.store.GetChannel(ctx, state.ChannelID)
	if err != nil {
		if !apperror.Is(err, apperror.KindNotFound) {
			s.sugar.Error(err)
		}
		return state, nil
	}

	s.notify.Emit(gateway.ServerRoom(channel.ServerID), gateway.EventVoiceUserLeft,
		VoiceLeftPayload{ServerID: channel.ServerID, ChannelID: channel.ID, UserID: userID})
	return state, nil
}

// UpdateVoiceFlags sets the caller's self mute and deafen flags.
func (s *Service) UpdateVoiceFlags(ctx context.Context, userID int64, input VoiceFlagsInput) (models.VoiceState, error) {
	state, err := s.store.UpdateVoiceFlags(ctx, userID, input.SelfMute, input.SelfDeaf)
	if err != nil {
		return models.VoiceState{}, err
	}

	channel, err := s.store.GetChannel(ctx, state.ChannelID)
	if err != nil {
		return models.VoiceState{}, err
	}

	public := state
	public.SessionID = ""
	s.notify.Emit(gateway.ServerRoom(channel.ServerID), gateway.EventVoiceStateUpdated, VoiceStatePayload{ServerID: channel.ServerID, VoiceState: public})
	return public, nil
}

// VoiceOccupants lists who is in a voice channel the caller can see.
func (s *Service) VoiceOccupants(ctx context.Context, userID int64, channelID int64) ([]models.VoiceState, error) {
	if _, _, err := s.channelForMember(ctx, userID, channelID); err != nil {
		return nil, err
	}

	states, err := s.store.ListVoiceStatesByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for i := range states {
		states[i].SessionID = ""
	}
	return states, nil
}
