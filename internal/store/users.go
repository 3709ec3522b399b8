package store

import (
	"context"
	"database/sql"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/models"
)

const userColumns = "id, username, email, password_hash, avatar_url, created_at, updated_at"

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var passwordHash string
	var avatar sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.Email, &passwordHash, &avatar, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = []byte(passwordHash)
	user.AvatarURL = stringPtr(avatar)
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, username string, email string, passwordHash []byte) (models.User, error) {
	id, err := s.ids.Generate()
	if err != nil {
		return models.User{}, err
	}

	now := s.millis()
	user := models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, s.q("INSERT INTO users (id, username, email, password_hash, avatar_url, created_at, updated_at) VALUES (?, ?, ?, ?, NULL, ?, ?)"),
		user.ID, user.Username, user.Email, string(user.PasswordHash), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return models.User{}, wrap("create user", "user", err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id))
	return user, wrap("get user", "user", err)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE email = ?"), email))
	return user, wrap("find user by email", "user", err)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE username = ?"), username))
	return user, wrap("find user by username", "user", err)
}

func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx, s.q("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)"), id).Scan(&found)
	if err != nil {
		return false, wrap("user exists", "user", err)
	}
	return found, nil
}

// UserUpdate holds optional profile changes. An empty AvatarURL clears it.
type UserUpdate struct {
	Username  *string
	AvatarURL *string
}

func (s *Store) UpdateUser(ctx context.Context, id int64, update UserUpdate) (models.User, error) {
	if update.Username != nil {
		existing, err := s.FindUserByUsername(ctx, *update.Username)
		if err == nil && existing.ID != id {
			return models.User{}, apperror.Conflict("This username is already taken")
		}
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return models.User{}, err
		}

		_, err = s.db.ExecContext(ctx, s.q("UPDATE users SET username = ?, updated_at = ? WHERE id = ?"), *update.Username, s.millis(), id)
		if err != nil {
			return models.User{}, wrap("update username", "user", err)
		}
	}

	if update.AvatarURL != nil {
		_, err := s.db.ExecContext(ctx, s.q("UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?"), nullString(update.AvatarURL), s.millis(), id)
		if err != nil {
			return models.User{}, wrap("update avatar", "user", err)
		}
	}

	return s.GetUser(ctx, id)
}
