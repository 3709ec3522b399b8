package gateway

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/models"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSnapshotSent
	StateHydrated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSnapshotSent:
		return "snapshot_sent"
	case StateHydrated:
		return "hydrated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the transport under a session. Send must not block: it reports
// false when the frame could not be queued.
type Conn interface {
	Send(frame []byte) bool
	Close()
}

// serverRooms is one server a session joins once it is hydrated.
type serverRooms struct {
	serverID   int64
	channelIDs []int64
}

type changeKind int

const (
	changeAttachServer changeKind = iota
	changeDetachServer
	changeAttachChannel
	changeDropChannel
)

// roomChange is a membership change that reached the session while its
// READY payload was being assembled. It is replayed onto pending once the
// payload is known.
type roomChange struct {
	kind       changeKind
	serverID   int64
	channelIDs []int64
}

// maxHeldFrames bounds the private frames held back until READY is queued.
const maxHeldFrames = 64

// Session is one client connection moving through the lifecycle
// Connecting → Authenticated → SnapshotSent → Hydrated → Closed.
type Session struct {
	ID     string
	UserID int64

	conn Conn
	gw   *Gateway

	mutex sync.Mutex
	state State
	// servers from the READY payload, joined on ready:ack
	pending []serverRooms
	// changes seen while Authenticated
	changes []roomChange

	// sendMutex is a leaf lock: nothing else is taken while it is held
	sendMutex sync.Mutex
	released  bool
	held      [][]byte

	closeOnce sync.Once
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// enqueue queues a frame on the connection. Until READY is queued frames are
// held back so READY is always the first frame. A connection that cannot
// keep up is closed.
func (s *Session) enqueue(frame []byte) bool {
	s.sendMutex.Lock()
	if !s.released {
		if len(s.held) < maxHeldFrames {
			s.held = append(s.held, frame)
			s.sendMutex.Unlock()
			return true
		}
		s.sendMutex.Unlock()
		s.slow()
		return false
	}
	s.sendMutex.Unlock()

	if s.conn.Send(frame) {
		return true
	}
	s.slow()
	return false
}

func (s *Session) slow() {
	s.gw.sugar.Warnf("Session %s of user ID %d is not keeping up, closing it", s.ID, s.UserID)
	s.conn.Close()
}

// release sends first, then the frames held back so far, and lets later
// frames through directly. With flush false the held frames are dropped.
func (s *Session) release(first []byte, flush bool) bool {
	s.sendMutex.Lock()
	defer s.sendMutex.Unlock()

	held := s.held
	s.held = nil
	s.released = true

	if first != nil && !s.conn.Send(first) {
		return false
	}
	if !flush {
		return true
	}
	for _, frame := range held {
		if !s.conn.Send(frame) {
			return false
		}
	}
	return true
}

func (s *Session) emit(event string, payload any) {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		s.gw.sugar.Error(err)
		return
	}
	s.enqueue(frame)
}

func (s *Session) sendError(err error) {
	switch apperror.KindOf(err) {
	case apperror.KindInternal, apperror.KindStoreUnavailable, apperror.KindInvariantViolation:
		s.gw.sugar.Errorf("Session %s of user ID %d: %v", s.ID, s.UserID, err)
	default:
		s.gw.sugar.Debugf("Session %s of user ID %d: %v", s.ID, s.UserID, err)
	}
	s.emit(EventError, apperror.Payload(err))
}

// Dispatch handles one inbound frame. Failures are reported to this
// connection only.
func (s *Session) Dispatch(ctx context.Context, frame []byte) {
	event, payload, err := DecodeFrame(frame)
	if err != nil {
		s.sendError(apperror.BadRequest("Malformed frame"))
		return
	}

	switch event {
	case EventReadyAck:
		s.hydrate()
	case EventMessageSend:
		err = s.sendMessage(ctx, payload)
	case EventTypingStart:
		err = s.startTyping(payload)
	case EventPresenceUpdate:
		err = s.updatePresence(payload)
	default:
		err = apperror.BadRequest("Unknown event " + event)
	}

	if err != nil {
		s.sendError(err)
	}
}

// hydrate joins the server and channel rooms of the READY payload, marks the
// user online and announces it to those servers. Only the first ready:ack
// does anything.
func (s *Session) hydrate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateSnapshotSent {
		return
	}

	router := s.gw.router
	for _, server := range s.pending {
		router.Subscribe(ServerRoom(server.serverID), s)
		for _, channelID := range server.channelIDs {
			router.Subscribe(ChannelRoom(channelID), s)
		}
	}
	s.state = StateHydrated

	s.gw.presence.Set(s.UserID, s.ID, models.StatusOnline)
	for _, server := range s.pending {
		s.gw.Emit(ServerRoom(server.serverID), EventPresenceChange, PresencePayload{UserID: s.UserID, Status: models.StatusOnline})
	}

	s.gw.sugar.Debugf("Session %s of user ID %d hydrated, joined %d servers", s.ID, s.UserID, len(s.pending))
	s.pending = nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperror.BadRequest("Missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Malformed payload", err)
	}
	return nil
}

func (s *Session) sendMessage(ctx context.Context, raw json.RawMessage) error {
	if state := s.State(); state != StateSnapshotSent && state != StateHydrated {
		return apperror.InvalidState("Connection is not ready")
	}

	var payload messageSendPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	if s.gw.messages == nil {
		return apperror.New(apperror.KindInternal, "Messaging is unavailable")
	}
	_, err := s.gw.messages.SendMessage(ctx, s.UserID, payload.ChannelID, payload.Content)
	return err
}

func (s *Session) startTyping(raw json.RawMessage) error {
	var payload typingStartPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	room := ChannelRoom(payload.ChannelID)
	if !s.gw.router.IsSubscribed(room, s) {
		return apperror.Forbidden("You are not subscribed to this channel")
	}

	frame, err := EncodeFrame(EventTypingUpdate, TypingPayload{ChannelID: payload.ChannelID, UserID: s.UserID})
	if err != nil {
		return err
	}
	s.gw.router.Publish(room, frame, s)
	return nil
}

func (s *Session) updatePresence(raw json.RawMessage) error {
	if s.State() != StateHydrated {
		return apperror.InvalidState("Presence can only be changed after ready:ack")
	}

	var payload presenceUpdatePayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	switch payload.Status {
	case models.StatusOnline, models.StatusIdle, models.StatusDnd:
	default:
		return apperror.BadRequest("Status must be online, idle or dnd")
	}

	s.gw.presence.Set(s.UserID, s.ID, payload.Status)

	// rooms held right now, not durable membership
	for _, room := range s.gw.router.RoomsOf(s, "server:") {
		s.gw.Emit(room, EventPresenceChange, PresencePayload{UserID: s.UserID, Status: payload.Status})
	}
	return nil
}

// applyPending folds one change into the servers waiting for ready:ack.
// Callers hold s.mutex.
func (s *Session) applyPending(c roomChange) {
	switch c.kind {
	case changeAttachServer:
		for i := range s.pending {
			if s.pending[i].serverID == c.serverID {
				s.pending[i].channelIDs = c.channelIDs
				return
			}
		}
		s.pending = append(s.pending, serverRooms{serverID: c.serverID, channelIDs: c.channelIDs})
	case changeDetachServer:
		for i, server := range s.pending {
			if server.serverID == c.serverID {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				return
			}
		}
	case changeAttachChannel:
		for i := range s.pending {
			if s.pending[i].serverID == c.serverID && !slices.Contains(s.pending[i].channelIDs, c.channelIDs[0]) {
				s.pending[i].channelIDs = append(slices.Clone(s.pending[i].channelIDs), c.channelIDs[0])
			}
		}
	case changeDropChannel:
		for i := range s.pending {
			s.pending[i].channelIDs = slices.DeleteFunc(slices.Clone(s.pending[i].channelIDs), func(id int64) bool {
				return id == c.channelIDs[0]
			})
		}
	}
}

// startSnapshot seeds pending from the READY payload, replays the changes
// recorded while it was assembled and moves the session to SnapshotSent. It
// reports false if the session was closed meanwhile.
func (s *Session) startSnapshot(servers []models.ServerWithChannels) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StateAuthenticated {
		return false
	}

	s.pending = make([]serverRooms, 0, len(servers))
	for _, server := range servers {
		s.pending = append(s.pending, serverRooms{serverID: server.ID, channelIDs: channelIDsOf(server.Channels)})
	}
	for _, change := range s.changes {
		s.applyPending(change)
	}
	s.changes = nil
	s.state = StateSnapshotSent
	return true
}

func channelIDsOf(channels []models.Channel) []int64 {
	ids := make([]int64, 0, len(channels))
	for _, channel := range channels {
		ids = append(ids, channel.ID)
	}
	return ids
}

func (s *Session) attachServer(serverID int64, channelIDs []int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	change := roomChange{kind: changeAttachServer, serverID: serverID, channelIDs: channelIDs}
	switch s.state {
	case StateAuthenticated:
		s.changes = append(s.changes, change)
	case StateSnapshotSent:
		s.applyPending(change)
	case StateHydrated:
		s.gw.router.Subscribe(ServerRoom(serverID), s)
		for _, channelID := range channelIDs {
			s.gw.router.Subscribe(ChannelRoom(channelID), s)
		}
	}
}

func (s *Session) detachServer(serverID int64, channelIDs []int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	change := roomChange{kind: changeDetachServer, serverID: serverID}
	if s.state == StateAuthenticated {
		s.changes = append(s.changes, change)
		return
	}
	s.applyPending(change)

	s.gw.router.Unsubscribe(ServerRoom(serverID), s)
	for _, channelID := range channelIDs {
		s.gw.router.Unsubscribe(ChannelRoom(channelID), s)
	}
}

// attachChannel reaches hydrated sessions that hold the server's room and
// sessions that will join the server on ready:ack.
func (s *Session) attachChannel(serverID int64, channelID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	change := roomChange{kind: changeAttachChannel, serverID: serverID, channelIDs: []int64{channelID}}
	switch s.state {
	case StateAuthenticated:
		s.changes = append(s.changes, change)
	case StateSnapshotSent:
		s.applyPending(change)
	case StateHydrated:
		if s.gw.router.IsSubscribed(ServerRoom(serverID), s) {
			s.gw.router.Subscribe(ChannelRoom(channelID), s)
		}
	}
}

func (s *Session) dropChannel(channelID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	change := roomChange{kind: changeDropChannel, channelIDs: []int64{channelID}}
	if s.state == StateAuthenticated {
		s.changes = append(s.changes, change)
		return
	}
	s.applyPending(change)
}

// Close ends the session. It runs once whatever state the session is in:
// the session leaves every room and the user's presence entry is removed.
// Servers are told the user went offline only if this session had made the
// user present.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		previous := s.state
		s.state = StateClosed
		s.pending = nil
		s.changes = nil
		s.mutex.Unlock()

		rooms := s.gw.router.UnsubscribeAll(s)
		s.gw.unregister(s)

		if s.gw.presence.RemoveConnection(s.UserID, s.ID) {
			for _, room := range rooms {
				if isServerRoom(room) {
					s.gw.Emit(room, EventPresenceChange, PresencePayload{UserID: s.UserID, Status: models.StatusOffline})
				}
			}
		}

		s.conn.Close()
		s.gw.sugar.Debugf("Session %s of user ID %d closed in state %s", s.ID, s.UserID, previous)
	})
}
