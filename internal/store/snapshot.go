package store

import (
	"context"
	"database/sql"

	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/models"
)

// ReadyServers loads every server the user belongs to together with its
// channels, member count and voice occupancy. All three reads share one
// transaction so they observe the same point in time.
func (s *Store) ReadyServers(ctx context.Context, userID int64) ([]models.ServerWithChannels, error) {
	var servers []models.ServerWithChannels

	err := s.withTx(ctx, s.db.SnapshotTxOptions(), func(ctx context.Context, tx database.DBTX) error {
		var err error
		servers, err = s.readyServerRows(ctx, tx, userID)
		if err != nil {
			return err
		}

		index := make(map[int64]int, len(servers))
		for i := range servers {
			index[servers[i].ID] = i
		}

		if err := s.readyChannelRows(ctx, tx, userID, servers, index); err != nil {
			return err
		}
		return s.readyVoiceRows(ctx, tx, userID, servers, index)
	})
	if err != nil {
		return nil, wrap("load ready servers", "user", err)
	}
	return servers, nil
}

func (s *Store) readyServerRows(ctx context.Context, tx database.DBTX, userID int64) ([]models.ServerWithChannels, error) {
	query := `
		SELECT
			s.id, s.name, s.icon_url, s.owner_id, s.invite_code, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM server_members c WHERE c.server_id = s.id)
		FROM
			servers s
		JOIN
			server_members sm ON sm.server_id = s.id
		WHERE
			sm.user_id = ?
		ORDER BY
			sm.joined_at ASC, s.id ASC`

	rows, err := tx.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []models.ServerWithChannels{}
	for rows.Next() {
		var entry models.ServerWithChannels
		var icon sql.NullString
		err := rows.Scan(&entry.ID, &entry.Name, &icon, &entry.OwnerID, &entry.InviteCode, &entry.CreatedAt, &entry.UpdatedAt, &entry.MemberCount)
		if err != nil {
			return nil, err
		}
		entry.IconURL = stringPtr(icon)
		entry.Channels = []models.Channel{}
		entry.VoiceStates = []models.VoiceState{}
		servers = append(servers, entry)
	}
	return servers, rows.Err()
}

func (s *Store) readyChannelRows(ctx context.Context, tx database.DBTX, userID int64, servers []models.ServerWithChannels, index map[int64]int) error {
	query := `
		SELECT
			c.id, c.server_id, c.name, c.topic, c.type, c.position, c.created_at, c.updated_at
		FROM
			channels c
		JOIN
			server_members sm ON sm.server_id = c.server_id
		WHERE
			sm.user_id = ?
		ORDER BY
			c.server_id ASC, c.position ASC, c.id ASC`

	rows, err := tx.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return err
		}
		if i, ok := index[channel.ServerID]; ok {
			servers[i].Channels = append(servers[i].Channels, channel)
		}
	}
	return rows.Err()
}

// readyVoiceRows leaves session tokens out; they belong to their owner only.
func (s *Store) readyVoiceRows(ctx context.Context, tx database.DBTX, userID int64, servers []models.ServerWithChannels, index map[int64]int) error {
	query := `
		SELECT
			vs.id, vs.channel_id, vs.user_id, vs.self_mute, vs.self_deaf, vs.joined_at,
			c.server_id
		FROM
			voice_states vs
		JOIN
			channels c ON c.id = vs.channel_id
		JOIN
			server_members sm ON sm.server_id = c.server_id
		WHERE
			sm.user_id = ?
		ORDER BY
			vs.joined_at ASC, vs.id ASC`

	rows, err := tx.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var state models.VoiceState
		var serverID int64
		if err := rows.Scan(&state.ID, &state.ChannelID, &state.UserID, &state.SelfMute, &state.SelfDeaf, &state.JoinedAt, &serverID); err != nil {
			return err
		}
		if i, ok := index[serverID]; ok {
			servers[i].VoiceStates = append(servers[i].VoiceStates, state)
		}
	}
	return rows.Err()
}

// CoMembers returns every (server, user) membership pair of the servers the
// user belongs to, the user's own pairs included.
func (s *Store) CoMembers(ctx context.Context, userID int64) ([]models.MemberRef, error) {
	query := `
		SELECT DISTINCT
			other.server_id, other.user_id
		FROM
			server_members mine
		JOIN
			server_members other ON other.server_id = mine.server_id
		WHERE
			mine.user_id = ?`

	rows, err := s.db.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return nil, wrap("list co-members", "user", err)
	}
	defer rows.Close()

	refs := []models.MemberRef{}
	for rows.Next() {
		var ref models.MemberRef
		if err := rows.Scan(&ref.ServerID, &ref.UserID); err != nil {
			return nil, wrap("list co-members", "user", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list co-members", "user", err)
	}
	return refs, nil
}

// ServerEntry loads one server the way ReadyServers does, for a user who just
// joined it.
func (s *Store) ServerEntry(ctx context.Context, serverID int64) (models.ServerWithChannels, error) {
	var entry models.ServerWithChannels

	err := s.withTx(ctx, s.db.SnapshotTxOptions(), func(ctx context.Context, tx database.DBTX) error {
		var icon sql.NullString
		err := tx.QueryRowContext(ctx, s.q(`
			SELECT
				s.id, s.name, s.icon_url, s.owner_id, s.invite_code, s.created_at, s.updated_at,
				(SELECT COUNT(*) FROM server_members c WHERE c.server_id = s.id)
			FROM
				servers s
			WHERE
				s.id = ?`), serverID).
			Scan(&entry.ID, &entry.Name, &icon, &entry.OwnerID, &entry.InviteCode, &entry.CreatedAt, &entry.UpdatedAt, &entry.MemberCount)
		if err != nil {
			return err
		}
		entry.IconURL = stringPtr(icon)
		entry.Channels = []models.Channel{}
		entry.VoiceStates = []models.VoiceState{}

		rows, err := tx.QueryContext(ctx, s.q("SELECT "+channelColumns+" FROM channels WHERE server_id = ? ORDER BY position ASC, id ASC"), serverID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			channel, err := scanChannel(rows)
			if err != nil {
				return err
			}
			entry.Channels = append(entry.Channels, channel)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		voiceRows, err := tx.QueryContext(ctx, s.q(`
			SELECT
				vs.id, vs.channel_id, vs.user_id, vs.self_mute, vs.self_deaf, vs.joined_at
			FROM
				voice_states vs
			JOIN
				channels c ON c.id = vs.channel_id
			WHERE
				c.server_id = ?
			ORDER BY
				vs.joined_at ASC, vs.id ASC`), serverID)
		if err != nil {
			return err
		}
		defer voiceRows.Close()
		for voiceRows.Next() {
			var state models.VoiceState
			if err := voiceRows.Scan(&state.ID, &state.ChannelID, &state.UserID, &state.SelfMute, &state.SelfDeaf, &state.JoinedAt); err != nil {
				return err
			}
			entry.VoiceStates = append(entry.VoiceStates, state)
		}
		return voiceRows.Err()
	})
	if err != nil {
		return models.ServerWithChannels{}, wrap("load server entry", "server", err)
	}
	return entry, nil
}

// MemberRefs lists the (server, user) pairs of one server.
func (s *Store) MemberRefs(ctx context.Context, serverID int64) ([]models.MemberRef, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT server_id, user_id FROM server_members WHERE server_id = ?"), serverID)
	if err != nil {
		return nil, wrap("list member ids", "server", err)
	}
	defer rows.Close()

	refs := []models.MemberRef{}
	for rows.Next() {
		var ref models.MemberRef
		if err := rows.Scan(&ref.ServerID, &ref.UserID); err != nil {
			return nil, wrap("list member ids", "server", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list member ids", "server", err)
	}
	return refs, nil
}
