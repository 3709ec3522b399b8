// Package store is the durable store: users, servers, memberships, channels,
// messages and voice occupancy over database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chatapp-gateway/internal/apperror"
	"chatapp-gateway/internal/database"
)

// IDGenerator hands out unique, time ordered ids.
type IDGenerator interface {
	Generate() (int64, error)
}

type Store struct {
	db  *database.DB
	ids IDGenerator
	now func() time.Time
}

func New(db *database.DB, ids IDGenerator) *Store {
	return &Store{db: db, ids: ids, now: time.Now}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) millis() int64 {
	return s.now().UnixMilli()
}

func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx database.DBTX) error) error {
	return database.WithTx(ctx, s.db.DB, opts, fn)
}

// wrap turns a driver error into an application error. sql.ErrNoRows
// becomes a not found error for resource, a unique key violation a
// conflict; application errors pass through.
func wrap(op string, resource string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource)
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsUniqueViolation(err) {
		return apperror.Wrap(apperror.KindConflict, "This "+resource+" already exists", err)
	}
	return apperror.Unavailable(op, err)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// Cursor is an exclusive keyset position in a newest-first list: rows older
// than At, or at At with a smaller ID. The zero Cursor starts from the newest
// row; without an ID only At is compared.
type Cursor struct {
	At int64
	ID int64
}

func (c Cursor) condition(atColumn string, idColumn string) (string, []any) {
	switch {
	case c.At <= 0:
		return "", nil
	case c.ID <= 0:
		return " AND " + atColumn + " < ?", []any{c.At}
	default:
		return " AND (" + atColumn + " < ? OR (" + atColumn + " = ? AND " + idColumn + " < ?))", []any{c.At, c.At, c.ID}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}
