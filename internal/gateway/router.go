package gateway

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Router maps room names to the sessions subscribed to them. It also keeps
// the reverse index so a session's own rooms can be listed without scanning
// every room.
type Router struct {
	mutex     sync.RWMutex
	rooms     map[string]map[*Session]struct{}
	bySession map[*Session]map[string]struct{}
	sugar     *zap.SugaredLogger
}

func NewRouter(sugar *zap.SugaredLogger) *Router {
	return &Router{
		rooms:     make(map[string]map[*Session]struct{}),
		bySession: make(map[*Session]map[string]struct{}),
		sugar:     sugar,
	}
}

func (r *Router) Subscribe(room string, s *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Session]struct{})
	}
	r.rooms[room][s] = struct{}{}

	if r.bySession[s] == nil {
		r.bySession[s] = make(map[string]struct{})
	}
	r.bySession[s][room] = struct{}{}
}

func (r *Router) Unsubscribe(room string, s *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.unsubscribe(room, s)
}

func (r *Router) unsubscribe(room string, s *Session) {
	delete(r.rooms[room], s)
	// delete room from map if no session is subscribed to it
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}

	delete(r.bySession[s], room)
	if len(r.bySession[s]) == 0 {
		delete(r.bySession, s)
	}
}

// UnsubscribeAll removes s from every room and returns the rooms it was in.
func (r *Router) UnsubscribeAll(s *Session) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rooms := make([]string, 0, len(r.bySession[s]))
	for room := range r.bySession[s] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.unsubscribe(room, s)
	}
	return rooms
}

// CloseRoom drops every subscription to room.
func (r *Router) CloseRoom(room string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for s := range r.rooms[room] {
		r.unsubscribe(room, s)
	}
}

func (r *Router) IsSubscribed(room string, s *Session) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.rooms[room][s]
	return ok
}

// RoomsOf lists the rooms of s whose name starts with prefix.
func (r *Router) RoomsOf(s *Session, prefix string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var rooms []string
	for room := range r.bySession[s] {
		if strings.HasPrefix(room, prefix) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// Publish queues frame on every session in room except exclude and returns
// how many sessions it reached.
func (r *Router) Publish(room string, frame []byte, exclude *Session) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sent := 0
	for s := range r.rooms[room] {
		if s == exclude {
			continue
		}
		if s.enqueue(frame) {
			sent++
		}
	}
	r.sugar.Debugf("Published to %d sessions on room %s", sent, room)
	return sent
}
