package store

import (
	"context"
	"database/sql"

	"gatherly/internal/domain"
)

func (s Store) InsertUser(ctx context.Context, u domain.User) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users(username,display_name,email,password_hash,image,created_at) VALUES (?,?,?,?,?,?)`,
		u.Username, u.DisplayName, u.Email, u.PasswordHash, nullableStringPtr(u.Image), u.CreatedAt)
	return err
}

func (s Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT username,display_name,email,password_hash,image,created_at FROM users WHERE email=?`, email))
}

func (s Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT username,display_name,email,password_hash,image,created_at FROM users WHERE username=?`, username))
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var image sql.NullString
	err := row.Scan(&u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &image, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if image.Valid {
		u.Image = &image.String
	}
	return u, nil
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
