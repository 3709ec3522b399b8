package presence

import (
	"sync"
	"testing"
	"time"

	"chatapp-gateway/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSetReplacesEntry(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	r.Set(1, "conn-a", models.StatusOnline)
	r.Set(1, "conn-b", models.StatusDnd)

	entry := r.Get(1)
	assert.Equal(t, "conn-b", entry.ConnectionID)
	assert.Equal(t, models.StatusDnd, entry.Status)
	assert.Equal(t, now, entry.UpdatedAt)
	assert.Equal(t, 1, r.Len())
}

func TestGetMissingIsOffline(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, models.StatusOffline, r.Get(99).Status)
	assert.Zero(t, r.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Set(1, "conn-a", models.StatusOnline)

	r.Remove(1)
	assert.Zero(t, r.Len())

	r.Remove(1)
	assert.Zero(t, r.Len())
	assert.Equal(t, models.StatusOffline, r.Get(1).Status)
}

func TestRemoveConnectionKeepsNewerEntry(t *testing.T) {
	r := NewRegistry()
	r.Set(1, "old", models.StatusOnline)
	r.Set(1, "new", models.StatusIdle)

	assert.False(t, r.RemoveConnection(1, "old"))
	assert.Equal(t, "new", r.Get(1).ConnectionID)

	assert.True(t, r.RemoveConnection(1, "new"))
	assert.False(t, r.RemoveConnection(1, "new"))
	assert.Zero(t, r.Len())
}

func TestResolve(t *testing.T) {
	r := NewRegistry()
	r.Set(1, "a", models.StatusOnline)
	r.Set(2, "b", models.StatusIdle)
	r.Set(4, "d", models.StatusOnline)

	refs := []models.MemberRef{
		{ServerID: 10, UserID: 1},
		{ServerID: 10, UserID: 2},
		{ServerID: 10, UserID: 3},
		{ServerID: 20, UserID: 1},
		{ServerID: 20, UserID: 3},
	}

	statuses, online := r.Resolve(refs)

	assert.Equal(t, map[int64]models.PresenceStatus{1: models.StatusOnline, 2: models.StatusIdle}, statuses)
	assert.Equal(t, map[int64]int{10: 2, 20: 1}, online)
	_, listed := statuses[3]
	assert.False(t, listed)
	_, listed = statuses[4]
	assert.False(t, listed)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.Set(id, "c", models.StatusOnline)
			r.Resolve([]models.MemberRef{{ServerID: 1, UserID: id}})
			r.Remove(id)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}
