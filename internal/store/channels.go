package store

import (
	"context"
	"database/sql"

	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/models"
)

const channelColumns = "id, server_id, name, topic, type, position, created_at, updated_at"

func scanChannel(row rowScanner) (models.Channel, error) {
	var channel models.Channel
	var topic sql.NullString
	err := row.Scan(&channel.ID, &channel.ServerID, &channel.Name, &topic, &channel.Type, &channel.Position, &channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return models.Channel{}, err
	}
	channel.Topic = stringPtr(topic)
	return channel, nil
}

// CreateChannel appends a channel after the server's current last position.
func (s *Store) CreateChannel(ctx context.Context, serverID int64, name string, channelType models.ChannelType, topic *string) (models.Channel, error) {
	id, err := s.ids.Generate()
	if err != nil {
		return models.Channel{}, err
	}

	now := s.millis()
	channel := models.Channel{
		ID:        id,
		ServerID:  serverID,
		Name:      name,
		Topic:     stringPtr(nullString(topic)),
		Type:      channelType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withTx(ctx, nil, func(ctx context.Context, tx database.DBTX) error {
		err := tx.QueryRowContext(ctx, s.q("SELECT COALESCE(MAX(position), -1) + 1 FROM channels WHERE server_id = ?"), serverID).Scan(&channel.Position)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q("INSERT INTO channels (id, server_id, name, topic, type, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
			channel.ID, channel.ServerID, channel.Name, nullString(channel.Topic), channel.Type, channel.Position, channel.CreatedAt, channel.UpdatedAt)
		return err
	})
	if err != nil {
		return models.Channel{}, wrap("create channel", "server", err)
	}
	return channel, nil
}

func (s *Store) GetChannel(ctx context.Context, id int64) (models.Channel, error) {
	channel, err := scanChannel(s.db.QueryRowContext(ctx, s.q("SELECT "+channelColumns+" FROM channels WHERE id = ?"), id))
	return channel, wrap("get channel", "channel", err)
}

// ListChannels returns the server's channels by position, ties in insertion
// order.
func (s *Store) ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+channelColumns+" FROM channels WHERE server_id = ? ORDER BY position ASC, id ASC"), serverID)
	if err != nil {
		return nil, wrap("list channels", "server", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, wrap("list channels", "server", err)
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list channels", "server", err)
	}
	return channels, nil
}

// ChannelUpdate holds optional channel changes. An empty Topic clears it.
type ChannelUpdate struct {
	Name     *string
	Topic    *string
	Position *int
}

func (s *Store) UpdateChannel(ctx context.Context, id int64, update ChannelUpdate) (models.Channel, error) {
	now := s.millis()
	if update.Name != nil {
		if _, err := s.db.ExecContext(ctx, s.q("UPDATE channels SET name = ?, updated_at = ? WHERE id = ?"), *update.Name, now, id); err != nil {
			return models.Channel{}, wrap("update channel name", "channel", err)
		}
	}
	if update.Topic != nil {
		if _, err := s.db.ExecContext(ctx, s.q("UPDATE channels SET topic = ?, updated_at = ? WHERE id = ?"), nullString(update.Topic), now, id); err != nil {
			return models.Channel{}, wrap("update channel topic", "channel", err)
		}
	}
	if update.Position != nil {
		if _, err := s.db.ExecContext(ctx, s.q("UPDATE channels SET position = ?, updated_at = ? WHERE id = ?"), *update.Position, now, id); err != nil {
			return models.Channel{}, wrap("update channel position", "channel", err)
		}
	}
	return s.GetChannel(ctx, id)
}

// DeleteChannel removes the channel; its messages and voice states cascade.
func (s *Store) DeleteChannel(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q("DELETE FROM channels WHERE id = ?"), id)
	if err != nil {
		return false, wrap("delete channel", "channel", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrap("delete channel", "channel", err)
	}
	return affected > 0, nil
}
