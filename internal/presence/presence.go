// Package presence tracks which users are connected to this process and
// with what status. Nothing here is persisted: a user without an entry is
// offline.
package presence

import (
	"sync"
	"time"

	"chatapp-gateway/internal/models"
)

type Entry struct {
	ConnectionID string
	Status       models.PresenceStatus
	UpdatedAt    time.Time
}

// Registry is safe for concurrent use. One entry per user; the last Set wins.
type Registry struct {
	mutex   sync.RWMutex
	entries map[int64]Entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]Entry),
		now:     time.Now,
	}
}

// Set replaces whatever entry the user had.
func (r *Registry) Set(userID int64, connectionID string, status models.PresenceStatus) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries[userID] = Entry{
		ConnectionID: connectionID,
		Status:       status,
		UpdatedAt:    r.now(),
	}
}

// Remove deletes the user's entry. Removing an absent user is a no-op.
func (r *Registry) Remove(userID int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.entries, userID)
}

// RemoveConnection deletes the user's entry only if it still belongs to
// connectionID, so a closing connection cannot wipe out a newer one. It
// reports whether an entry was removed.
func (r *Registry) RemoveConnection(userID int64, connectionID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.ConnectionID != connectionID {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Get returns the user's entry, or an offline entry if there is none.
func (r *Registry) Get(userID int64) Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return Entry{Status: models.StatusOffline}
	}
	return entry
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

// Resolve looks up every member of refs. It returns the status of each user
// that is not offline and, per server, how many of its members are online.
func (r *Registry) Resolve(refs []models.MemberRef) (map[int64]models.PresenceStatus, map[int64]int) {
	statuses := make(map[int64]models.PresenceStatus)
	online := make(map[int64]int)

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, ref := range refs {
		entry, ok := r.entries[ref.UserID]
		if !ok || entry.Status == models.StatusOffline {
			continue
		}
		statuses[ref.UserID] = entry.Status
		online[ref.ServerID]++
	}
	return statuses, online
}
