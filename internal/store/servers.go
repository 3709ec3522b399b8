package store

import (
	"context"
	"database/sql"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/models"
)

const DefaultChannelName = "general"

const serverColumns = "id, name, icon_url, owner_id, invite_code, created_at, updated_at"

func scanServer(row rowScanner) (models.Server, error) {
	var server models.Server
	var icon sql.NullString
	err := row.Scan(&server.ID, &server.Name, &icon, &server.OwnerID, &server.InviteCode, &server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		return models.Server{}, err
	}
	server.IconURL = stringPtr(icon)
	return server, nil
}

// ErrInviteCodeTaken is returned by CreateServerWithOwner when another server
// already uses the invite code.
var ErrInviteCodeTaken = apperror.Conflict("Invite code is already in use")

// CreateServerWithOwner creates the server, the owner's membership and the
// default text channel in one transaction.
func (s *Store) CreateServerWithOwner(ctx context.Context, name string, iconURL *string, ownerID int64, inviteCode string) (models.Server, models.Channel, error) {
	serverID, err := s.ids.Generate()
	if err != nil {
		return models.Server{}, models.Channel{}, err
	}
	channelID, err := s.ids.Generate()
	if err != nil {
		return models.Server{}, models.Channel{}, err
	}

	now := s.millis()
	server := models.Server{
		ID:         serverID,
		Name:       name,
		IconURL:    stringPtr(nullString(iconURL)),
		OwnerID:    ownerID,
		InviteCode: inviteCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	channel := models.Channel{
		ID:        channelID,
		ServerID:  serverID,
		Name:      DefaultChannelName,
		Type:      models.ChannelTypeText,
		Position:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withTx(ctx, nil, func(ctx context.Context, tx database.DBTX) error {
		_, err := tx.ExecContext(ctx, s.q("INSERT INTO servers (id, name, icon_url, owner_id, invite_code, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"),
			server.ID, server.Name, nullString(server.IconURL), server.OwnerID, server.InviteCode, server.CreatedAt, server.UpdatedAt)
		if database.IsUniqueViolation(err) {
			return ErrInviteCodeTaken
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q("INSERT INTO server_members (server_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)"),
			server.ID, ownerID, models.RoleOwner, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q("INSERT INTO channels (id, server_id, name, topic, type, position, created_at, updated_at) VALUES (?, ?, ?, NULL, ?, ?, ?, ?)"),
			channel.ID, channel.ServerID, channel.Name, channel.Type, channel.Position, channel.CreatedAt, channel.UpdatedAt)
		return err
	})
	if err != nil {
		return models.Server{}, models.Channel{}, wrap("create server", "server", err)
	}

	return server, channel, nil
}

func (s *Store) GetServer(ctx context.Context, id int64) (models.Server, error) {
	server, err := scanServer(s.db.QueryRowContext(ctx, s.q("SELECT "+serverColumns+" FROM servers WHERE id = ?"), id))
	return server, wrap("get server", "server", err)
}

func (s *Store) FindServerByInviteCode(ctx context.Context, inviteCode string) (models.Server, error) {
	server, err := scanServer(s.db.QueryRowContext(ctx, s.q("SELECT "+serverColumns+" FROM servers WHERE invite_code = ?"), inviteCode))
	return server, wrap("find server by invite", "server", err)
}

// ServerUpdate holds optional server changes. An empty IconURL clears it.
type ServerUpdate struct {
	Name    *string
	IconURL *string
}

func (s *Store) UpdateServer(ctx context.Context, id int64, update ServerUpdate) (models.Server, error) {
	if update.Name != nil {
		_, err := s.db.ExecContext(ctx, s.q("UPDATE servers SET name = ?, updated_at = ? WHERE id = ?"), *update.Name, s.millis(), id)
		if err != nil {
			return models.Server{}, wrap("update server name", "server", err)
		}
	}
	if update.IconURL != nil {
		_, err := s.db.ExecContext(ctx, s.q("UPDATE servers SET icon_url = ?, updated_at = ? WHERE id = ?"), nullString(update.IconURL), s.millis(), id)
		if err != nil {
			return models.Server{}, wrap("update server icon", "server", err)
		}
	}
	return s.GetServer(ctx, id)
}

// DeleteServer removes the server; channels, memberships, messages and voice
// states cascade.
func (s *Store) DeleteServer(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q("DELETE FROM servers WHERE id = ?"), id)
	if err != nil {
		return false, wrap("delete server", "server", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrap("delete server", "server", err)
	}
	return affected > 0, nil
}

func (s *Store) GetMembership(ctx context.Context, userID int64, serverID int64) (models.Membership, error) {
	var membership models.Membership
	err := s.db.QueryRowContext(ctx, s.q("SELECT server_id, user_id, role, joined_at FROM server_members WHERE user_id = ? AND server_id = ?"), userID, serverID).
		Scan(&membership.ServerID, &membership.UserID, &membership.Role, &membership.JoinedAt)
	return membership, wrap("get membership", "membership", err)
}

// AddMember inserts a membership row; an existing row for the pair is a
// conflict, whether seen by the check or by the primary key when two joins
// race.
func (s *Store) AddMember(ctx context.Context, userID int64, serverID int64, role models.Role) (models.Membership, error) {
	membership := models.Membership{ServerID: serverID, UserID: userID, Role: role, JoinedAt: s.millis()}

	err := s.withTx(ctx, nil, func(ctx context.Context, tx database.DBTX) error {
		var exists bool
		err := tx.QueryRowContext(ctx, s.q("SELECT EXISTS(SELECT 1 FROM server_members WHERE user_id = ? AND server_id = ?)"), userID, serverID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return apperror.Conflict("You are already a member of this server")
		}

		_, err = tx.ExecContext(ctx, s.q("INSERT INTO server_members (server_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)"),
			membership.ServerID, membership.UserID, membership.Role, membership.JoinedAt)
		if database.IsUniqueViolation(err) {
			return apperror.Conflict("You are already a member of this server")
		}
		return err
	})
	if err != nil {
		return models.Membership{}, wrap("add member", "server", err)
	}
	return membership, nil
}

func (s *Store) RemoveMember(ctx context.Context, userID int64, serverID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q("DELETE FROM server_members WHERE user_id = ? AND server_id = ?"), userID, serverID)
	if err != nil {
		return false, wrap("remove member", "membership", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrap("remove member", "membership", err)
	}
	return affected > 0, nil
}

// ListMembers returns up to limit members who joined before the cursor,
// newest first. The cursor ID is the member's user id.
func (s *Store) ListMembers(ctx context.Context, serverID int64, limit int, before Cursor) ([]models.Member, error) {
	query := `
		SELECT
			u.id, u.username, u.avatar_url, sm.role, sm.joined_at
		FROM
			server_members sm
		JOIN
			users u ON u.id = sm.user_id
		WHERE
			sm.server_id = ?`
	condition, cursorArgs := before.condition("sm.joined_at", "sm.user_id")
	query += condition
	args := append([]any{serverID}, cursorArgs...)
	query += " ORDER BY sm.joined_at DESC, sm.user_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, wrap("list members", "server", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var member models.Member
		var avatar sql.NullString
		if err := rows.Scan(&member.ID, &member.Username, &avatar, &member.Role, &member.JoinedAt); err != nil {
			return nil, wrap("list members", "server", err)
		}
		member.AvatarURL = stringPtr(avatar)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list members", "server", err)
	}
	return members, nil
}

// ServerIDsForUser lists every server the user belongs to.
func (s *Store) ServerIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT server_id FROM server_members WHERE user_id = ? ORDER BY joined_at"), userID)
	if err != nil {
		return nil, wrap("list user servers", "user", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("list user servers", "user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list user servers", "user", err)
	}
	return ids, nil
}
