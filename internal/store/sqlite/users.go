package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
)

const userColumns = "email, name, photo_url, role, created_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.Email, &u.Name, &u.PhotoURL, &role, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

// CreateUserIfAbsent はメールアドレスが未登録の場合のみApplicantとしてユーザーを作成する。
func (s *Store) CreateUserIfAbsent(ctx context.Context, u model.User) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, photo_url, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		u.Email, u.Name, u.PhotoURL, string(model.RoleApplicant), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗: %w", err)
	}
	return n == 1, nil
}

// UpsertUser はプロフィールを作成または更新する。既存ユーザーのロールは変更しない。
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, photo_url, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			photo_url = excluded.photo_url`,
		u.Email, u.Name, u.PhotoURL, string(model.RoleApplicant), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ユーザーの更新に失敗: %w", err)
	}
	return nil
}

// GetUser はメールアドレスでユーザーを取得する。
func (s *Store) GetUser(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// ListUsers はユーザー一覧を作成順に返す。
func (s *Store) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの読み取りに失敗: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRole はユーザーのロールを変更する。
func (s *Store) UpdateUserRole(ctx context.Context, email string, role model.Role) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE email = ?", string(role), email)
	if err != nil {
		return fmt.Errorf("ロールの更新に失敗: %w", err)
	}
	return expectOne(res)
}

// DeleteUser はユーザーを削除する。
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗: %w", err)
	}
	return expectOne(res)
}

// RoleOf はユーザーの保存済みロールを返す。
func (s *Store) RoleOf(ctx context.Context, email string) (model.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx, "SELECT role FROM users WHERE email = ?", email).Scan(&role)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("ロールの取得に失敗: %w", err)
	}
	return model.Role(role), nil
}
