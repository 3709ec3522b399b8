// Package gateway is the real-time side of the chat server: it hydrates new
// connections with a READY snapshot, admits them into broadcast rooms once
// the client acknowledges it, and fans domain events out to those rooms.
package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chatapp-gateway/internal/models"
	"chatapp-gateway/internal/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errClosedBeforeReady = errors.New("connection closed before ready was queued")

// MessageSender persists a message posted over the gateway and announces it.
type MessageSender interface {
	SendMessage(ctx context.Context, userID int64, channelID int64, content string) (models.Message, error)
}

type Gateway struct {
	router    *Router
	presence  *presence.Registry
	assembler *Assembler
	messages  MessageSender
	sugar     *zap.SugaredLogger

	mutex    sync.RWMutex
	sessions map[int64]map[*Session]struct{}
}

func New(router *Router, presence *presence.Registry, assembler *Assembler, sugar *zap.SugaredLogger) *Gateway {
	return &Gateway{
		router:    router,
		presence:  presence,
		assembler: assembler,
		sugar:     sugar,
		sessions:  make(map[int64]map[*Session]struct{}),
	}
}

// UseMessages sets the handler for message:send. It must be called before
// the first connection is opened.
func (g *Gateway) UseMessages(messages MessageSender) {
	g.messages = messages
}

// Open runs an authenticated connection up to SnapshotSent. The session is
// registered and subscribed to its private user room before the READY
// payload is assembled, so membership changes made meanwhile are recorded
// and private events are held until READY is queued. On failure the error
// is sent to the client and the connection is closed.
func (g *Gateway) Open(ctx context.Context, userID int64, conn Conn) (*Session, error) {
	s := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		gw:     g,
		state:  StateAuthenticated,
	}
	g.sugar.Debugf("User ID %d connected as session %s", userID, s.ID)

	g.register(s)
	g.router.Subscribe(UserRoom(userID), s)

	payload, err := g.assembler.Assemble(ctx, userID)
	if err != nil {
		s.release(nil, false)
		s.sendError(err)
		s.Close()
		return nil, err
	}

	frame, err := EncodeFrame(EventReady, payload)
	if err != nil {
		s.release(nil, false)
		s.sendError(err)
		s.Close()
		return nil, err
	}

	if !s.startSnapshot(payload.Servers) || !s.release(frame, true) {
		s.Close()
		return nil, errClosedBeforeReady
	}

	g.sugar.Debugf("Sent ready to session %s with %d servers", s.ID, len(payload.Servers))
	return s, nil
}

func (g *Gateway) register(s *Session) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.sessions[s.UserID] == nil {
		g.sessions[s.UserID] = make(map[*Session]struct{})
	}
	g.sessions[s.UserID][s] = struct{}{}
}

func (g *Gateway) unregister(s *Session) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	delete(g.sessions[s.UserID], s)
	if len(g.sessions[s.UserID]) == 0 {
		delete(g.sessions, s.UserID)
	}
}

func (g *Gateway) sessionsOf(userID int64) []*Session {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	sessions := make([]*Session, 0, len(g.sessions[userID]))
	for s := range g.sessions[userID] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (g *Gateway) allSessions() []*Session {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var sessions []*Session
	for _, byUser := range g.sessions {
		for s := range byUser {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Emit sends event to every session subscribed to room.
func (g *Gateway) Emit(room string, event string, payload any) {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		g.sugar.Error(err)
		return
	}
	g.router.Publish(room, frame, nil)
}

// AttachServer adds the user's connections to a server they just joined.
// Hydrated connections subscribe at once and the server is told the user is
// present; connections still waiting for ready:ack pick it up on hydration.
func (g *Gateway) AttachServer(userID int64, serverID int64, channelIDs []int64) {
	for _, s := range g.sessionsOf(userID) {
		s.attachServer(serverID, channelIDs)
	}

	if entry := g.presence.Get(userID); entry.Status != models.StatusOffline {
		g.Emit(ServerRoom(serverID), EventPresenceChange, PresencePayload{UserID: userID, Status: entry.Status})
	}
}

// DetachServer removes the user's connections from a server's rooms.
func (g *Gateway) DetachServer(userID int64, serverID int64, channelIDs []int64) {
	for _, s := range g.sessionsOf(userID) {
		s.detachServer(serverID, channelIDs)
	}
}

// DropServer removes every connection from a deleted server's rooms.
func (g *Gateway) DropServer(serverID int64, channelIDs []int64) {
	for _, s := range g.allSessions() {
		s.detachServer(serverID, channelIDs)
	}
	g.router.CloseRoom(ServerRoom(serverID))
	for _, channelID := range channelIDs {
		g.router.CloseRoom(ChannelRoom(channelID))
	}
}

// AttachChannel subscribes the hydrated members of a server to a new channel.
func (g *Gateway) AttachChannel(serverID int64, channelID int64) {
	for _, s := range g.allSessions() {
		s.attachChannel(serverID, channelID)
	}
}

// DropChannel removes every connection from a deleted channel's room.
func (g *Gateway) DropChannel(channelID int64) {
	for _, s := range g.allSessions() {
		s.dropChannel(channelID)
	}
	g.router.CloseRoom(ChannelRoom(channelID))
}

// CloseAll closes every open connection; their sessions finish closing on
// their own read loops.
func (g *Gateway) CloseAll() {
	for _, s := range g.allSessions() {
		s.conn.Close()
	}
}

func isServerRoom(room string) bool {
	return strings.HasPrefix(room, "server:")
}
