package gateway

import (
	"context"

	"chatapp-gateway/internal/models"
)

type SnapshotStore interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	ReadyServers(ctx context.Context, userID int64) ([]models.ServerWithChannels, error)
	CoMembers(ctx context.Context, userID int64) ([]models.MemberRef, error)
}

type PresenceResolver interface {
	Resolve(refs []models.MemberRef) (map[int64]models.PresenceStatus, map[int64]int)
}

// Assembler builds READY payloads. Server entries carry member counts, never
// member lists, so the payload grows with the number of servers and channels
// only.
type Assembler struct {
	store    SnapshotStore
	presence PresenceResolver
}

func NewAssembler(store SnapshotStore, presence PresenceResolver) *Assembler {
	return &Assembler{store: store, presence: presence}
}

// Assemble fails with not_found when the user no longer exists. Online counts
// are read from presence after the durable reads, so they can be briefly out
// of step with who is connected.
func (a *Assembler) Assemble(ctx context.Context, userID int64) (models.ReadyPayload, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return models.ReadyPayload{}, err
	}

	servers, err := a.store.ReadyServers(ctx, userID)
	if err != nil {
		return models.ReadyPayload{}, err
	}

	refs, err := a.store.CoMembers(ctx, userID)
	if err != nil {
		return models.ReadyPayload{}, err
	}

	presenceMap, onlineByServer := a.presence.Resolve(refs)
	for i := range servers {
		servers[i].OnlineMemberCount = onlineByServer[servers[i].ID]
	}

	return models.ReadyPayload{
		User:        user,
		Servers:     servers,
		PresenceMap: presenceMap,
	}, nil
}
