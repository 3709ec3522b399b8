package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/database"
	"chatapp-gateway/internal/models"
)

const voiceColumns = "id, channel_id, user_id, session_id, self_mute, self_deaf, joined_at"

func scanVoiceState(row rowScanner) (models.VoiceState, error) {
	var state models.VoiceState
	err := row.Scan(&state.ID, &state.ChannelID, &state.UserID, &state.SessionID, &state.SelfMute, &state.SelfDeaf, &state.JoinedAt)
	return state, err
}

func (s *Store) voiceUpsertQuery() string {
	if s.db.Dialect == database.MySQL {
		return `
		INSERT INTO voice_states (id, channel_id, user_id, session_id, self_mute, self_deaf, joined_at)
		VALUES (?, ?, ?, ?, FALSE, FALSE, ?)
		ON DUPLICATE KEY UPDATE
			channel_id = VALUES(channel_id),
			session_id = VALUES(session_id),
			self_mute = FALSE,
			self_deaf = FALSE,
			joined_at = VALUES(joined_at)`
	}
	return `
		INSERT INTO voice_states (id, channel_id, user_id, session_id, self_mute, self_deaf, joined_at)
		VALUES (?, ?, ?, ?, FALSE, FALSE, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			session_id = excluded.session_id,
			self_mute = FALSE,
			self_deaf = FALSE,
			joined_at = excluded.joined_at`
}

// UpsertVoiceState moves the user into channelID, replacing any occupancy it
// held before in the same statement. previousChannelID is the vacated
// channel, or 0 if the user was not in voice.
func (s *Store) UpsertVoiceState(ctx context.Context, channelID int64, userID int64, sessionID string) (state models.VoiceState, previousChannelID int64, err error) {
	id, err := s.ids.Generate()
	if err != nil {
		return models.VoiceState{}, 0, err
	}

	err = s.withTx(ctx, nil, func(ctx context.Context, tx database.DBTX) error {
		err := tx.QueryRowContext(ctx, s.q("SELECT channel_id FROM voice_states WHERE user_id = ?"), userID).Scan(&previousChannelID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.q(s.voiceUpsertQuery()), id, channelID, userID, sessionID, s.millis()); err != nil {
			return err
		}

		var rows int
		if err := tx.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM voice_states WHERE user_id = ?"), userID).Scan(&rows); err != nil {
			return err
		}
		if rows != 1 {
			return apperror.Invariant(fmt.Sprintf("user %d holds %d voice states", userID, rows))
		}

		state, err = scanVoiceState(tx.QueryRowContext(ctx, s.q("SELECT "+voiceColumns+" FROM voice_states WHERE user_id = ?"), userID))
		return err
	})
	if err != nil {
		return models.VoiceState{}, 0, wrap("join voice", "voice state", err)
	}

	if previousChannelID == channelID {
		previousChannelID = 0
	}
	return state, previousChannelID, nil
}

func (s *Store) GetVoiceState(ctx context.Context, userID int64) (models.VoiceState, error) {
	state, err := scanVoiceState(s.db.QueryRowContext(ctx, s.q("SELECT "+voiceColumns+" FROM voice_states WHERE user_id = ?"), userID))
	return state, wrap("get voice state", "voice state", err)
}

// RemoveVoiceState deletes the user's occupancy and returns what it was.
func (s *Store) RemoveVoiceState(ctx context.Context, userID int64) (models.VoiceState, error) {
	var state models.VoiceState
	err := s.withTx(ctx, nil, func(ctx context.Context, tx database.DBTX) error {
		var err error
		state, err = scanVoiceState(tx.QueryRowContext(ctx, s.q("SELECT "+voiceColumns+" FROM voice_states WHERE user_id = ?"), userID))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q("DELETE FROM voice_states WHERE user_id = ?"), userID)
		return err
	})
	if err != nil {
		return models.VoiceState{}, wrap("leave voice", "voice state", err)
	}
	return state, nil
}

func (s *Store) UpdateVoiceFlags(ctx context.Context, userID int64, selfMute bool, selfDeaf bool) (models.VoiceState, error) {
	state, err := s.GetVoiceState(ctx, userID)
	if err != nil {
		return models.VoiceState{}, err
	}

	_, err = s.db.ExecContext(ctx, s.q("UPDATE voice_states SET self_mute = ?, self_deaf = ? WHERE user_id = ?"), selfMute, selfDeaf, userID)
	if err != nil {
		return models.VoiceState{}, wrap("update voice state", "voice state", err)
	}
	state.SelfMute = selfMute
	state.SelfDeaf = selfDeaf
	return state, nil
}

func (s *Store) ListVoiceStatesByChannel(ctx context.Context, channelID int64) ([]models.VoiceState, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+voiceColumns+" FROM voice_states WHERE channel_id = ? ORDER BY joined_at"), channelID)
	if err != nil {
		return nil, wrap("list voice states", "channel", err)
	}
	defer rows.Close()

	states := []models.VoiceState{}
	for rows.Next() {
		state, err := scanVoiceState(rows)
		if err != nil {
			return nil, wrap("list voice states", "channel", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list voice states", "channel", err)
	}
	return states, nil
}
