// Package service holds the chat operations behind the REST routes and the
// gateway: servers, channels, messages and voice. Every mutation is
// persisted first and then announced to the rooms that must see it.
package service

import (
	"context"
	"crypto/rand"
	"math/big"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/store"
	"chatapp-gateway/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	inviteLength   = 8
	// invite codes tried before a collision is reported
	inviteAttempts = 3

	DefaultMemberLimit  = 100
	DefaultMessageLimit = 50
)

type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	UpdateUser(ctx context.Context, id int64, update store.UserUpdate) (models.User, error)

	CreateServerWithOwner(ctx context.Context, name string, iconURL *string, ownerID int64, inviteCode string) (models.Server, models.Channel, error)
	GetServer(ctx context.Context, id int64) (models.Server, error)
	FindServerByInviteCode(ctx context.Context, inviteCode string) (models.Server, error)
	UpdateServer(ctx context.Context, id int64, update store.ServerUpdate) (models.Server, error)
	DeleteServer(ctx context.Context, id int64) (bool, error)
	ServerEntry(ctx context.Context, serverID int64) (models.ServerWithChannels, error)
	MemberRefs(ctx context.Context, serverID int64) ([]models.MemberRef, error)

	GetMembership(ctx context.Context, userID int64, serverID int64) (models.Membership, error)
	AddMember(ctx context.Context, userID int64, serverID int64, role models.Role) (models.Membership, error)
	RemoveMember(ctx context.Context, userID int64, serverID int64) (bool, error)
	ListMembers(ctx context.Context, serverID int64, limit int, before store.Cursor) ([]models.Member, error)

	CreateChannel(ctx context.Context, serverID int64, name string, channelType models.ChannelType, topic *string) (models.Channel, error)
	GetChannel(ctx context.Context, id int64) (models.Channel, error)
	ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error)
	UpdateChannel(ctx context.Context, id int64, update store.ChannelUpdate) (models.Channel, error)
	DeleteChannel(ctx context.Context, id int64) (bool, error)

	CreateMessage(ctx context.Context, channelID int64, userID int64, content string, messageType models.MessageType) (models.Message, error)
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	ListMessages(ctx context.Context, channelID int64, limit int, before store.Cursor) ([]models.Message, error)
	UpdateMessageContent(ctx context.Context, id int64, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, id int64) (bool, error)

	UpsertVoiceState(ctx context.Context, channelID int64, userID int64, sessionID string) (models.VoiceState, int64, error)
	GetVoiceState(ctx context.Context, userID int64) (models.VoiceState, error)
	RemoveVoiceState(ctx context.Context, userID int64) (models.VoiceState, error)
	UpdateVoiceFlags(ctx context.Context, userID int64, selfMute bool, selfDeaf bool) (models.VoiceState, error)
	ListVoiceStatesByChannel(ctx context.Context, channelID int64) ([]models.VoiceState, error)
}

// Notifier fans events out to live connections and keeps their room
// subscriptions in step with membership changes.
type Notifier interface {
	Emit(room string, event string, payload any)
	AttachServer(userID int64, serverID int64, channelIDs []int64)
	DetachServer(userID int64, serverID int64, channelIDs []int64)
	DropServer(serverID int64, channelIDs []int64)
	AttachChannel(serverID int64, channelID int64)
	DropChannel(channelID int64)
}

// PresenceCounter resolves the online state of a set of memberships.
type PresenceCounter interface {
	Resolve(refs []models.MemberRef) (map[int64]models.PresenceStatus, map[int64]int)
}

type Service struct {
	store    Store
	notify   Notifier
	presence PresenceCounter
	validate *validator.Validator
	sugar    *zap.SugaredLogger

	newInviteCode func() (string, error)
	newSessionID  func() string
}

func New(store Store, notify Notifier, presence PresenceCounter, validate *validator.Validator, sugar *zap.SugaredLogger) *Service {
	return &Service{
		store:         store,
		notify:        notify,
		presence:      presence,
		validate:      validate,
		sugar:         sugar,
		newInviteCode: generateInviteCode,
		newSessionID:  uuid.NewString,
	}
}

func generateInviteCode() (string, error) {
	code := make([]byte, inviteLength)
	size := big.NewInt(int64(len(inviteAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}

// membership returns the caller's membership or permission_denied.
func (s *Service) membership(ctx context.Context, userID int64, serverID int64) (models.Membership, error) {
	membership, err := s.store.GetMembership(ctx, userID, serverID)
	if apperror.Is(err, apperror.KindNotFound) {
		return models.Membership{}, apperror.Forbidden("You are not a member of this server")
	}
	return membership, err
}

func (s *Service) requireManager(ctx context.Context, userID int64, serverID int64) (models.Membership, error) {
	membership, err := s.membership(ctx, userID, serverID)
	if err != nil {
		return models.Membership{}, err
	}
	if !membership.Role.CanManage() {
		return models.Membership{}, apperror.Forbidden("Only the owner or an admin can do this")
	}
	return membership, nil
}

// channelForMember loads a channel and checks the caller belongs to its
// server.
func (s *Service) channelForMember(ctx context.Context, userID int64, channelID int64) (models.Channel, models.Membership, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return models.Channel{}, models.Membership{}, err
	}
	membership, err := s.membership(ctx, userID, channel.ServerID)
	if err != nil {
		return models.Channel{}, models.Membership{}, err
	}
	return channel, membership, nil
}

func channelIDs(channels []models.Channel) []int64 {
	ids := make([]int64, 0, len(channels))
	for _, channel := range channels {
		ids = append(ids, channel.ID)
	}
	return ids
}

// Page is one slice of a cursor-paginated list, newest first. The next page
// is requested with cursor=NextCursor and cursorId=NextCursorID.
type Page[T any] struct {
	Items        []T   `json:"items"`
	HasMore      bool  `json:"hasMore"`
	NextCursor   int64 `json:"nextCursor,omitempty"`
	NextCursorID int64 `json:"nextCursorId,string,omitempty"`
}

// paginate trims a limit+1 result down to limit and sets the cursor to the
// last kept item.
func paginate[T any](items []T, limit int, cursor func(T) store.Cursor) Page[T] {
	page := Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
	}
	if page.HasMore && len(page.Items) > 0 {
		last := cursor(page.Items[len(page.Items)-1])
		page.NextCursor = last.At
		page.NextCursorID = last.ID
	}
	return page
}
