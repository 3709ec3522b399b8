package store

import (
	"context"
	"database/sql"

	"chatapp-gateway/internal/models"
)

func scanMessageWithAuthor(row rowScanner) (models.Message, error) {
	var msg models.Message
	var author models.Author
	var avatar sql.NullString
	err := row.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content, &msg.Type, &msg.CreatedAt, &msg.UpdatedAt,
		&author.Username, &avatar)
	if err != nil {
		return models.Message{}, err
	}
	author.ID = msg.UserID
	author.AvatarURL = stringPtr(avatar)
	msg.Author = &author
	return msg, nil
}

const messageWithAuthorQuery = `
		SELECT
			m.id, m.channel_id, m.user_id, m.content, m.type, m.created_at, m.updated_at,
			u.username,
			u.avatar_url
		FROM
			messages m
		JOIN
			users u ON u.id = m.user_id`

func (s *Store) CreateMessage(ctx context.Context, channelID int64, userID int64, content string, messageType models.MessageType) (models.Message, error) {
	id, err := s.ids.Generate()
	if err != nil {
		return models.Message{}, err
	}

	now := s.millis()
	_, err = s.db.ExecContext(ctx, s.q("INSERT INTO messages (id, channel_id, user_id, content, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"),
		id, channelID, userID, content, messageType, now, now)
	if err != nil {
		return models.Message{}, wrap("create message", "channel", err)
	}

	return s.GetMessage(ctx, id)
}

func (s *Store) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	msg, err := scanMessageWithAuthor(s.db.QueryRowContext(ctx, s.q(messageWithAuthorQuery+" WHERE m.id = ?"), id))
	return msg, wrap("get message", "message", err)
}

// ListMessages returns up to limit messages of the channel older than
// before, newest first.
func (s *Store) ListMessages(ctx context.Context, channelID int64, limit int, before Cursor) ([]models.Message, error) {
	condition, cursorArgs := before.condition("m.created_at", "m.id")
	query := messageWithAuthorQuery + " WHERE m.channel_id = ?" + condition
	args := append([]any{channelID}, cursorArgs...)
	query += " ORDER BY m.created_at DESC, m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, wrap("list messages", "channel", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessageWithAuthor(rows)
		if err != nil {
			return nil, wrap("list messages", "channel", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list messages", "channel", err)
	}
	return messages, nil
}

func (s *Store) UpdateMessageContent(ctx context.Context, id int64, content string) (models.Message, error) {
	_, err := s.db.ExecContext(ctx, s.q("UPDATE messages SET content = ?, updated_at = ? WHERE id = ?"), content, s.millis(), id)
	if err != nil {
		return models.Message{}, wrap("update message", "message", err)
	}
	return s.GetMessage(ctx, id)
}

func (s *Store) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q("DELETE FROM messages WHERE id = ?"), id)
	if err != nil {
		return false, wrap("delete message", "message", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrap("delete message", "message", err)
	}
	return affected > 0, nil
}
