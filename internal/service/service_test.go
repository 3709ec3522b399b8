package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/gateway"
	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/presence"
	"chatapp-gateway/internal/snowflake"
	"chatapp-gateway/internal/store"
	"chatapp-gateway/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	op      string
	room    string
	payload any
}

// recorder stands in for the gateway and remembers what it was asked to do.
type recorder struct {
	mutex sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) Emit(room string, event string, payload any) {
	r.add(call{op: event, room: room, payload: payload})
}

func (r *recorder) AttachServer(userID int64, serverID int64, channelIDs []int64) {
	r.add(call{op: "attach", room: fmt.Sprintf("user:%d>server:%d", userID, serverID), payload: channelIDs})
}

func (r *recorder) DetachServer(userID int64, serverID int64, channelIDs []int64) {
	r.add(call{op: "detach", room: fmt.Sprintf("user:%d>server:%d", userID, serverID), payload: channelIDs})
}

func (r *recorder) DropServer(serverID int64, channelIDs []int64) {
	r.add(call{op: "drop", room: gateway.ServerRoom(serverID), payload: channelIDs})
}

func (r *recorder) AttachChannel(serverID int64, channelID int64) {
	r.add(call{op: "attach", room: gateway.ChannelRoom(channelID)})
}

func (r *recorder) DropChannel(channelID int64) {
	r.add(call{op: "drop", room: gateway.ChannelRoom(channelID)})
}

// ops lists "op room" for every recorded call.
func (r *recorder) ops() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.op+" "+c.room)
	}
	return out
}

func (r *recorder) reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = nil
}

func (r *recorder) find(op string) (call, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, c := range r.calls {
		if c.op == op {
			return c, true
		}
	}
	return call{}, false
}

type fixture struct {
	t        *testing.T
	svc      *Service
	store    *store.Store
	notify   *recorder
	presence *presence.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	st := store.New(db, node)
	notify := &recorder{}
	registry := presence.NewRegistry()
	svc := New(st, notify, registry, validator.New(), zap.NewNop().Sugar())

	return &fixture{t: t, svc: svc, store: st, notify: notify, presence: registry}
}

func (f *fixture) user(name string) models.User {
	f.t.Helper()
	user, err := f.store.CreateUser(context.Background(), name, name+"@example.com", []byte("hash"))
	require.NoError(f.t, err)
	return user
}

func (f *fixture) server(owner models.User) models.ServerWithChannels {
	f.t.Helper()
	entry, err := f.svc.CreateServer(context.Background(), owner.ID, CreateServerInput{Name: owner.Username + "'s server"})
	require.NoError(f.t, err)
	return entry
}

func (f *fixture) join(user models.User, server models.ServerWithChannels, role models.Role) {
	f.t.Helper()
	_, err := f.store.AddMember(context.Background(), user.ID, server.ID, role)
	require.NoError(f.t, err)
}

func (f *fixture) voiceChannel(owner models.User, server models.ServerWithChannels, name string) models.Channel {
	f.t.Helper()
	channel, err := f.svc.CreateChannel(context.Background(), owner.ID, CreateChannelInput{ServerID: server.ID, Name: name, Type: models.ChannelTypeVoice})
	require.NoError(f.t, err)
	return channel
}

func userServer(userID int64, serverID int64) string {
	return fmt.Sprintf("user:%d>server:%d", userID, serverID)
}

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := generateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, inviteLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(inviteAlphabet, r), "unexpected %q in %s", r, code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestCreateServer(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	entry := f.server(alice)

	assert.Equal(t, alice.ID, entry.OwnerID)
	assert.Equal(t, 1, entry.MemberCount)
	require.Len(t, entry.Channels, 1)
	assert.Equal(t, store.DefaultChannelName, entry.Channels[0].Name)
	assert.Equal(t, models.ChannelTypeText, entry.Channels[0].Type)
	assert.Len(t, entry.InviteCode, inviteLength)

	attach, ok := f.notify.find("attach")
	require.True(t, ok)
	assert.Equal(t, userServer(alice.ID, entry.ID), attach.room)
	assert.Equal(t, []int64{entry.Channels[0].ID}, attach.payload)
}

// codes hands out the given invite codes in order.
func codes(list ...string) func() (string, error) {
	return func() (string, error) {
		code := list[0]
		if len(list) > 1 {
			list = list[1:]
		}
		return code, nil
	}
}

func TestCreateServerRetriesInviteCollision(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	taken := f.server(alice)

	f.svc.newInviteCode = codes(taken.InviteCode, "FRESH234")
	entry, err := f.svc.CreateServer(context.Background(), alice.ID, CreateServerInput{Name: "Second"})
	require.NoError(t, err)
	assert.Equal(t, "FRESH234", entry.InviteCode)

	f.svc.newInviteCode = codes(taken.InviteCode)
	_, err = f.svc.CreateServer(context.Background(), alice.ID, CreateServerInput{Name: "Third"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestCreateServerValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	tests := []struct {
		name  string
		input CreateServerInput
	}{
		{name: "empty", input: CreateServerInput{Name: ""}},
		{name: "blank", input: CreateServerInput{Name: "   "}},
		{name: "too long", input: CreateServerInput{Name: strings.Repeat("x", 101)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateServer(context.Background(), alice.ID, tt.input)
			assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
		})
	}
	assert.Empty(t, f.notify.ops())
}

func TestJoinServer(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	server := f.server(alice)
	f.presence.Set(alice.ID, "conn-a", models.StatusOnline)
	f.notify.reset()

	entry, err := f.svc.JoinServer(context.Background(), bob.ID, JoinServerInput{InviteCode: " " + server.InviteCode + " "})
	require.NoError(t, err)

	assert.Equal(t, server.ID, entry.ID)
	assert.Equal(t, 2, entry.MemberCount)
	assert.Equal(t, 1, entry.OnlineMemberCount)

	assert.Equal(t, []string{
		gateway.EventServerMemberJoined + " " + gateway.ServerRoom(server.ID),
		gateway.EventServerJoined + " " + gateway.UserRoom(bob.ID),
		"attach " + userServer(bob.ID, server.ID),
	}, f.notify.ops())

	joined, _ := f.notify.find(gateway.EventServerMemberJoined)
	payload := joined.payload.(MemberJoinedPayload)
	assert.Equal(t, bob.ID, payload.Member.ID)
	assert.Equal(t, models.RoleMember, payload.Member.Role)

	tests := []struct {
		name   string
		userID int64
		code   string
		kind   apperror.Kind
	}{
		{name: "unknown code", userID: bob.ID, code: "nope1234", kind: apperror.KindNotFound},
		{name: "already member", userID: bob.ID, code: server.InviteCode, kind: apperror.KindConflict},
		{name: "owner", userID: alice.ID, code: server.InviteCode, kind: apperror.KindConflict},
		{name: "blank code", userID: bob.ID, code: "  ", kind: apperror.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.JoinServer(context.Background(), tt.userID, JoinServerInput{InviteCode: tt.code})
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestLeaveServer(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	carol := f.user("carol")
	server := f.server(alice)
	f.join(bob, server, models.RoleMember)
	voice := f.voiceChannel(alice, server, "lounge")

	_, err := f.svc.JoinVoice(context.Background(), bob.ID, voice.ID)
	require.NoError(t, err)
	f.notify.reset()

	tests := []struct {
		name   string
		userID int64
		kind   apperror.Kind
	}{
		{name: "owner", userID: alice.ID, kind: apperror.KindBadRequest},
		{name: "not a member", userID: carol.ID, kind: apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.LeaveServer(context.Background(), tt.userID, server.ID)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, f.notify.ops())

	require.NoError(t, f.svc.LeaveServer(context.Background(), bob.ID, server.ID))

	assert.Equal(t, []string{
		"detach " + userServer(bob.ID, server.ID),
		gateway.EventServerMemberLeft + " " + gateway.ServerRoom(server.ID),
		gateway.EventVoiceUserLeft + " " + gateway.ServerRoom(server.ID),
	}, f.notify.ops())

	_, err = f.store.GetVoiceState(context.Background(), bob.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	err = f.svc.LeaveServer(context.Background(), alice.ID, 42)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUpdateServerPermissions(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	admin := f.user("admin")
	member := f.user("member")
	outsider := f.user("outsider")
	server := f.server(alice)
	f.join(admin, server, models.RoleAdmin)
	f.join(member, server, models.RoleMember)

	name := func(s string) *string { return &s }

	tests := []struct {
		name   string
		userID int64
		input  UpdateServerInput
		kind   apperror.Kind
	}{
		{name: "owner", userID: alice.ID, input: UpdateServerInput{Name: name("Renamed")}},
		{name: "admin", userID: admin.ID, input: UpdateServerInput{IconURL: name("https://cdn.example.com/icon.png")}},
		{name: "member", userID: member.ID, input: UpdateServerInput{Name: name("Nope")}, kind: apperror.KindPermissionDenied},
		{name: "outsider", userID: outsider.ID, input: UpdateServerInput{Name: name("Nope")}, kind: apperror.KindPermissionDenied},
		{name: "blank name", userID: alice.ID, input: UpdateServerInput{Name: name("  ")}, kind: apperror.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.notify.reset()
			updated, err := f.svc.UpdateServer(context.Background(), tt.userID, server.ID, tt.input)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, apperror.KindOf(err))
				assert.Empty(t, f.notify.ops())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{gateway.EventServerUpdated + " " + gateway.ServerRoom(server.ID)}, f.notify.ops())
			event, _ := f.notify.find(gateway.EventServerUpdated)
			assert.Equal(t, updated, event.payload)
		})
	}

	_, err := f.svc.UpdateServer(context.Background(), alice.ID, 42, UpdateServerInput{Name: name("x")})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestDeleteServer(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	admin := f.user("admin")
	server := f.server(alice)
	f.join(admin, server, models.RoleAdmin)
	voice := f.voiceChannel(alice, server, "lounge")
	f.notify.reset()

	err := f.svc.DeleteServer(context.Background(), admin.ID, server.ID)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))
	assert.Empty(t, f.notify.ops())

	require.NoError(t, f.svc.DeleteServer(context.Background(), alice.ID, server.ID))
	assert.Equal(t, []string{
		gateway.EventServerDeleted + " " + gateway.ServerRoom(server.ID),
		"drop " + gateway.ServerRoom(server.ID),
	}, f.notify.ops())

	drop, _ := f.notify.find("drop")
	assert.ElementsMatch(t, []int64{server.Channels[0].ID, voice.ID}, drop.payload)

	_, err = f.store.GetServer(context.Background(), server.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestListMembersPages(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	server := f.server(alice)
	for _, name := range []string{"bob", "carol", "dave"} {
		time.Sleep(2 * time.Millisecond)
		f.join(f.user(name), server, models.RoleMember)
	}
	outsider := f.user("outsider")

	first, err := f.svc.ListMembers(context.Background(), alice.ID, server.ID, ListMembersInput{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, "dave", first.Items[0].Username)
	assert.Equal(t, first.Items[2].JoinedAt, first.NextCursor)

	assert.Equal(t, first.Items[2].ID, first.NextCursorID)

	second, err := f.svc.ListMembers(context.Background(), alice.ID, server.ID, ListMembersInput{Limit: 3, Cursor: first.NextCursor, CursorID: first.NextCursorID})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "alice", second.Items[0].Username)
	assert.Equal(t, models.RoleOwner, second.Items[0].Role)
	assert.False(t, second.HasMore)
	assert.Zero(t, second.NextCursor)

	all, err := f.svc.ListMembers(context.Background(), alice.ID, server.ID, ListMembersInput{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)

	tests := []struct {
		name     string
		userID   int64
		serverID int64
		input    ListMembersInput
		kind     apperror.Kind
	}{
		{name: "outsider", userID: outsider.ID, serverID: server.ID, kind: apperror.KindPermissionDenied},
		{name: "unknown server", userID: alice.ID, serverID: 42, kind: apperror.KindNotFound},
		{name: "limit too high", userID: alice.ID, serverID: server.ID, input: ListMembersInput{Limit: 201}, kind: apperror.KindBadRequest},
		{name: "negative limit", userID: alice.ID, serverID: server.ID, input: ListMembersInput{Limit: -1}, kind: apperror.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ListMembers(context.Background(), tt.userID, tt.serverID, tt.input)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestChannelLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	server := f.server(alice)
	f.join(bob, server, models.RoleMember)
	f.notify.reset()

	_, err := f.svc.CreateChannel(context.Background(), bob.ID, CreateChannelInput{ServerID: server.ID, Name: "nope"})
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	_, err = f.svc.CreateChannel(context.Background(), alice.ID, CreateChannelInput{ServerID: server.ID, Name: "x", Type: "video"})
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	assert.Empty(t, f.notify.ops())

	text, err := f.svc.CreateChannel(context.Background(), alice.ID, CreateChannelInput{ServerID: server.ID, Name: " random "})
	require.NoError(t, err)
	assert.Equal(t, "random", text.Name)
	assert.Equal(t, models.ChannelTypeText, text.Type)
	assert.Equal(t, 1, text.Position)
	assert.Equal(t, []string{
		gateway.EventChannelCreated + " " + gateway.ServerRoom(server.ID),
		"attach " + gateway.ChannelRoom(text.ID),
	}, f.notify.ops())

	channels, err := f.svc.ListChannels(context.Background(), bob.ID, server.ID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, text.ID, channels[1].ID)

	f.notify.reset()
	position := 0
	topic := "off topic"
	updated, err := f.svc.UpdateChannel(context.Background(), alice.ID, text.ID, UpdateChannelInput{Topic: &topic, Position: &position})
	require.NoError(t, err)
	assert.Equal(t, &topic, updated.Topic)
	assert.Equal(t, 0, updated.Position)
	assert.Equal(t, []string{gateway.EventChannelUpdated + " " + gateway.ServerRoom(server.ID)}, f.notify.ops())

	negative := -1
	_, err = f.svc.UpdateChannel(context.Background(), alice.ID, text.ID, UpdateChannelInput{Position: &negative})
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))

	voice := f.voiceChannel(alice, server, "lounge")
	_, err = f.svc.JoinVoice(context.Background(), bob.ID, voice.ID)
	require.NoError(t, err)
	f.notify.reset()

	err = f.svc.DeleteChannel(context.Background(), bob.ID, voice.ID)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	require.NoError(t, f.svc.DeleteChannel(context.Background(), alice.ID, voice.ID))
	assert.Equal(t, []string{
		gateway.EventVoiceUserLeft + " " + gateway.ServerRoom(server.ID),
		gateway.EventChannelDeleted + " " + gateway.ServerRoom(server.ID),
		"drop " + gateway.ChannelRoom(voice.ID),
	}, f.notify.ops())

	err = f.svc.DeleteChannel(context.Background(), alice.ID, voice.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	outsider := f.user("outsider")
	server := f.server(alice)
	channel := server.Channels[0]
	f.notify.reset()

	tests := []struct {
		name      string
		userID    int64
		channelID int64
		content   string
		kind      apperror.Kind
	}{
		{name: "outsider", userID: outsider.ID, channelID: channel.ID, content: "hi", kind: apperror.KindPermissionDenied},
		{name: "unknown channel", userID: alice.ID, channelID: 42, content: "hi", kind: apperror.KindNotFound},
		{name: "blank", userID: alice.ID, channelID: channel.ID, content: "  \n ", kind: apperror.KindBadRequest},
		{name: "too long", userID: alice.ID, channelID: channel.ID, content: strings.Repeat("a", 4001), kind: apperror.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(context.Background(), tt.userID, tt.channelID, tt.content)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, f.notify.ops())

	msg, err := f.svc.SendMessage(context.Background(), alice.ID, channel.ID, strings.Repeat("a", 4000))
	require.NoError(t, err)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "alice", msg.Author.Username)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, []string{gateway.EventMessageNew + " " + gateway.ChannelRoom(channel.ID)}, f.notify.ops())
}

func TestHistoryPages(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	outsider := f.user("outsider")
	server := f.server(alice)
	channel := server.Channels[0]

	for i := range 5 {
		time.Sleep(2 * time.Millisecond)
		_, err := f.svc.SendMessage(context.Background(), alice.ID, channel.ID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	first, err := f.svc.History(context.Background(), alice.ID, channel.ID, HistoryInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "message 4", first.Items[0].Content)
	assert.True(t, first.HasMore)

	second, err := f.svc.History(context.Background(), alice.ID, channel.ID, HistoryInput{Limit: 2, Cursor: first.NextCursor, CursorID: first.NextCursorID})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "message 2", second.Items[0].Content)

	third, err := f.svc.History(context.Background(), alice.ID, channel.ID, HistoryInput{Limit: 2, Cursor: second.NextCursor, CursorID: second.NextCursorID})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.False(t, third.HasMore)

	_, err = f.svc.History(context.Background(), outsider.ID, channel.ID, HistoryInput{})
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	_, err = f.svc.History(context.Background(), alice.ID, channel.ID, HistoryInput{Limit: 101})
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
}

func TestEditAndDeleteMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	carol := f.user("carol")
	server := f.server(alice)
	f.join(bob, server, models.RoleMember)
	f.join(carol, server, models.RoleMember)
	channel := server.Channels[0]

	msg, err := f.svc.SendMessage(context.Background(), bob.ID, channel.ID, "hello")
	require.NoError(t, err)
	f.notify.reset()

	_, err = f.svc.EditMessage(context.Background(), alice.ID, msg.ID, "owned")
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	edited, err := f.svc.EditMessage(context.Background(), bob.ID, msg.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", edited.Content)
	assert.Equal(t, []string{gateway.EventMessageUpdated + " " + gateway.ChannelRoom(channel.ID)}, f.notify.ops())

	err = f.svc.DeleteMessage(context.Background(), carol.ID, msg.ID)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	f.notify.reset()
	require.NoError(t, f.svc.DeleteMessage(context.Background(), alice.ID, msg.ID))
	assert.Equal(t, []string{gateway.EventMessageDeleted + " " + gateway.ChannelRoom(channel.ID)}, f.notify.ops())

	err = f.svc.DeleteMessage(context.Background(), bob.ID, msg.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestVoice(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	outsider := f.user("outsider")
	first := f.server(alice)
	second := f.server(alice)
	lounge := f.voiceChannel(alice, first, "lounge")
	studio := f.voiceChannel(alice, second, "studio")
	f.notify.reset()

	_, err := f.svc.JoinVoice(context.Background(), alice.ID, first.Channels[0].ID)
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))

	_, err = f.svc.JoinVoice(context.Background(), outsider.ID, lounge.ID)
	assert.Equal(t, apperror.KindPermissionDenied, apperror.KindOf(err))

	_, err = f.svc.UpdateVoiceFlags(context.Background(), alice.ID, VoiceFlagsInput{SelfMute: true})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Empty(t, f.notify.ops())

	state, err := f.svc.JoinVoice(context.Background(), alice.ID, lounge.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, state.SessionID)
	assert.Equal(t, []string{gateway.EventVoiceUserJoined + " " + gateway.ServerRoom(first.ID)}, f.notify.ops())

	joined, _ := f.notify.find(gateway.EventVoiceUserJoined)
	assert.Empty(t, joined.payload.(VoiceStatePayload).VoiceState.SessionID)

	f.notify.reset()
	moved, err := f.svc.JoinVoice(context.Background(), alice.ID, studio.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state.SessionID, moved.SessionID)
	assert.Equal(t, []string{
		gateway.EventVoiceUserLeft + " " + gateway.ServerRoom(first.ID),
		gateway.EventVoiceUserJoined + " " + gateway.ServerRoom(second.ID),
	}, f.notify.ops())

	occupants, err := f.svc.VoiceOccupants(context.Background(), alice.ID, lounge.ID)
	require.NoError(t, err)
	assert.Empty(t, occupants)

	f.notify.reset()
	flags, err := f.svc.UpdateVoiceFlags(context.Background(), alice.ID, VoiceFlagsInput{SelfMute: true, SelfDeaf: true})
	require.NoError(t, err)
	assert.True(t, flags.SelfMute)
	assert.True(t, flags.SelfDeaf)
	assert.Empty(t, flags.SessionID)
	assert.Equal(t, []string{gateway.EventVoiceStateUpdated + " " + gateway.ServerRoom(second.ID)}, f.notify.ops())

	f.notify.reset()
	_, err = f.svc.LeaveVoice(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{gateway.EventVoiceUserLeft + " " + gateway.ServerRoom(second.ID)}, f.notify.ops())

	_, err = f.svc.LeaveVoice(context.Background(), alice.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	f.user("bob")

	name := func(s string) *string { return &s }

	tests := []struct {
		name  string
		input UpdateUserInput
		kind  apperror.Kind
	}{
		{name: "rename", input: UpdateUserInput{Username: name(" alicia ")}},
		{name: "taken", input: UpdateUserInput{Username: name("bob")}, kind: apperror.KindConflict},
		{name: "bad characters", input: UpdateUserInput{Username: name("a b")}, kind: apperror.KindBadRequest},
		{name: "too short", input: UpdateUserInput{Username: name("a")}, kind: apperror.KindBadRequest},
		{name: "avatar", input: UpdateUserInput{AvatarURL: name("https://cdn.example.com/a.png")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.svc.UpdateUser(context.Background(), alice.ID, tt.input)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, apperror.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.ID, user.ID)
		})
	}

	user, err := f.svc.GetUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)
	require.NotNil(t, user.AvatarURL)
}
