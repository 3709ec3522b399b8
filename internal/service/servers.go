package service

import (
	"context"
	"errors"
	"strings"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/store"
)

type CreateServerInput struct {
	Name    string  `json:"name" validate:"required,notblank,max=100"`
	IconURL *string `json:"iconUrl" validate:"omitempty,max=2048"`
}

type UpdateServerInput struct {
	Name    *string `json:"name" validate:"omitempty,notblank,max=100"`
	IconURL *string `json:"iconUrl" validate:"omitempty,max=2048"`
}

type JoinServerInput struct {
	InviteCode string `json:"inviteCode" validate:"required,notblank,max=32"`
}

type ListMembersInput struct {
	Limit    int   `json:"limit" validate:"min=1,max=200"`
	Cursor   int64 `json:"cursor" validate:"min=0"`
	CursorID int64 `json:"cursorId,string" validate:"min=0"`
}

// CreateServer creates the server with its owner and default channel, then
// attaches the owner's live connections to it.
func (s *Service) CreateServer(ctx context.Context, userID int64, input CreateServerInput) (models.ServerWithChannels, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return models.ServerWithChannels{}, err
	}

	var server models.Server
	var channel models.Channel
	for attempt := 1; ; attempt++ {
		code, err := s.newInviteCode()
		if err != nil {
			return models.ServerWithChannels{}, apperror.Wrap(apperror.KindInvariantViolation, "could not generate invite code", err)
		}

		server, channel, err = s.store.CreateServerWithOwner(ctx, input.Name, input.IconURL, userID, code)
		if errors.Is(err, store.ErrInviteCodeTaken) && attempt < inviteAttempts {
			s.sugar.Warnf("Invite code collision on attempt %d, generating a new one", attempt)
			continue
		}
		if err != nil {
			return models.ServerWithChannels{}, err
		}
		break
	}
	s.sugar.Debugf("User ID [%d] created server ID [%d]", userID, server.ID)

	s.notify.AttachServer(userID, server.ID, []int64{channel.ID})

	return s.serverEntry(ctx, server.ID)
}

// GetServer returns the full entry of a server the caller belongs to.
func (s *Service) GetServer(ctx context.Context, userID int64, serverID int64) (models.ServerWithChannels, error) {
	if _, err := s.store.GetServer(ctx, serverID); err != nil {
		return models.ServerWithChannels{}, err
	}
	if _, err := s.membership(ctx, userID, serverID); err != nil {
		return models.ServerWithChannels{}, err
	}
	return s.serverEntry(ctx, serverID)
}

func (s *Service) serverEntry(ctx context.Context, serverID int64) (models.ServerWithChannels, error) {
	entry, err := s.store.ServerEntry(ctx, serverID)
	if err != nil {
		return models.ServerWithChannels{}, err
	}

	refs, err := s.store.MemberRefs(ctx, serverID)
	if err != nil {
		return models.ServerWithChannels{}, err
	}
	_, online := s.presence.Resolve(refs)
	entry.OnlineMemberCount = online[serverID]
	return entry, nil
}

func (s *Service) UpdateServer(ctx context.Context, userID int64, serverID int64, input UpdateServerInput) (models.Server, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if err := s.validate.Struct(input); err != nil {
		return models.Server{}, err
	}

	if _, err := s.store.GetServer(ctx, serverID); err != nil {
		return models.Server{}, err
	}
	if _, err := s.requireManager(ctx, userID, serverID); err != nil {
		return models.Server{}, err
	}

	server, err := s.store.UpdateServer(ctx, serverID, store.ServerUpdate{Name: input.Name, IconURL: input.IconURL})
	if err != nil {
		return models.Server{}, err
	}

	s.notify.Emit(gateway.ServerRoom(serverID), gateway.EventServerUpdated, server)
	return server, nil
}

// DeleteServer announces the deletion to the server room before the rooms
// are torn down, so members still subscribed receive it.
func (s *Service) DeleteServer(ctx context.Context, userID int64, serverID int64) error {
	server, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID != userID {
		return apperror.Forbidden("Only the owner can delete this server")
	}

	channels, err := s.store.ListChannels(ctx, serverID)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteServer(ctx, serverID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("server")
	}
	s.sugar.Debugf("User ID [%d] deleted server ID [%d]", userID, serverID)

	s.notify.Emit(gateway.ServerRoom(serverID), gateway.EventServerDeleted, ServerDeletedPayload{ServerID: serverID})
	s.notify.DropServer(serverID, channelIDs(channels))
	return nil
}

// JoinServer adds the caller by invite code. Existing members learn about the
// joiner first; the joiner then receives the full server entry on its own
// room before its connections are admitted to the server's rooms.
func (s *Service) JoinServer(ctx context.Context, userID int64, input JoinServerInput) (models.ServerWithChannels, error) {
	input.InviteCode = strings.TrimSpace(input.InviteCode)
	if err := s.validate.Struct(input); err != nil {
		return models.ServerWithChannels{}, err
	}

	server, err := s.store.FindServerByInviteCode(ctx, input.InviteCode)
	if apperror.Is(err, apperror.KindNotFound) {
		return models.ServerWithChannels{}, apperror.New(apperror.KindNotFound, "Invalid invite code")
	}
	if err != nil {
		return models.ServerWithChannels{}, err
	}

	membership, err := s.store.AddMember(ctx, userID, server.ID, models.RoleMember)
	if err != nil {
		return models.ServerWithChannels{}, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.ServerWithChannels{}, err
	}

	entry, err := s.serverEntry(ctx, server.ID)
	if err != nil {
		return models.ServerWithChannels{}, err
	}
	s.sugar.Debugf("User ID [%d] joined server ID [%d]", userID, server.ID)

	member := models.Member{
		Author:   models.Author{ID: user.ID, Username: user.Username, AvatarURL: user.AvatarURL},
		Role:     membership.Role,
		JoinedAt: membership.JoinedAt,
	}
	s.notify.Emit(gateway.ServerRoom(server.ID), gateway.EventServerMemberJoined, MemberJoinedPayload{ServerID: server.ID, Member: member})
	s.notify.Emit(gateway.UserRoom(userID), gateway.EventServerJoined, entry)
	s.notify.AttachServer(userID, server.ID, channelIDs(entry.Channels))

	return entry, nil
}

// LeaveServer detaches the leaver first so the departure is only announced
// to the members who stay. A voice occupancy inside the server ends too.
func (s *Service) LeaveServer(ctx context.Context, userID int64, serverID int64) error {
	server, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == userID {
		return apperror.BadRequest("The owner cannot leave the server, delete it instead")
	}

	channels, err := s.store.ListChannels(ctx, serverID)
	if err != nil {
		return err
	}

	removed, err := s.store.RemoveMember(ctx, userID, serverID)
	if err != nil {
		return err
	}
	if !removed {
		return apperror.New(apperror.KindNotFound, "You are not a member of this server")
	}
	s.sugar.Debugf("User ID [%d] left server ID [%d]", userID, serverID)

	s.notify.DetachServer(userID, serverID, channelIDs(channels))
	s.notify.Emit(gateway.ServerRoom(serverID), gateway.EventServerMemberLeft, MemberLeftPayload{ServerID: serverID, UserID: userID})

	return s.leaveVoiceIn(ctx, userID, serverID)
}

func (s *Service) leaveVoiceIn(ctx context.Context, userID int64, serverID int64) error {
	state, err := s.store.GetVoiceState(ctx, userID)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	channel, err := s.store.GetChannel(ctx, state.ChannelID)
	if err != nil || channel.ServerID != serverID {
		return nil
	}
	_, err = s.LeaveVoice(ctx, userID)
	return err
}

// ListMembers returns one page of the server's members, newest first.
func (s *Service) ListMembers(ctx context.Context, userID int64, serverID int64, input ListMembersInput) (Page[models.Member], error) {
	if input.Limit == 0 {
		input.Limit = DefaultMemberLimit
	}
	if err := s.validate.Struct(input); err != nil {
		return Page[models.Member]{}, err
	}

	if _, err := s.store.GetServer(ctx, serverID); err != nil {
		return Page[models.Member]{}, err
	}
	if _, err := s.membership(ctx, userID, serverID); err != nil {
		return Page[models.Member]{}, err
	}

	members, err := s.store.ListMembers(ctx, serverID, input.Limit+1, store.Cursor{At: input.Cursor, ID: input.CursorID})
	if err != nil {
		return Page[models.Member]{}, err
	}
	return paginate(members, input.Limit, func(m models.Member) store.Cursor {
		return store.Cursor{At: m.JoinedAt, ID: m.ID}
	}), nil
}
