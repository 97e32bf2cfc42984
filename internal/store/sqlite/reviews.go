package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
)

const reviewColumns = "id, email, scholarship_id, user_name, user_image, rating, comment, review_date"

func scanReview(row interface{ Scan(...any) error }) (model.Review, error) {
	var r model.Review
	if err := row.Scan(
		&r.ID, &r.Email, &r.ScholarshipID, &r.UserName, &r.UserImage, &r.Rating, &r.Comment, &r.ReviewDate,
	); err != nil {
		return model.Review{}, err
	}
	return r, nil
}

func (s *Store) insertReview(ctx context.Context, r model.Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Email, r.ScholarshipID, r.UserName, r.UserImage, r.Rating, r.Comment, r.ReviewDate.UTC(),
	)
	return err
}

// CreateReview はレビューを作成する。投稿日が未指定の場合は現在時刻を使う。
func (s *Store) CreateReview(ctx context.Context, r model.Review) (model.Review, error) {
	r.ID = uuid.New().String()
	if r.ReviewDate.IsZero() {
		r.ReviewDate = time.Now()
	}
	r.ReviewDate = r.ReviewDate.UTC()

	if err := s.insertReview(ctx, r); err != nil {
		return model.Review{}, fmt.Errorf("レビューの作成に失敗: %w", err)
	}
	return r, nil
}

// RestoreReview は削除したレビューを同じIDで再作成する。
func (s *Store) RestoreReview(ctx context.Context, r model.Review) error {
	if err := s.insertReview(ctx, r); err != nil {
		return fmt.Errorf("レビューの復元に失敗: %w", err)
	}
	return nil
}

// GetReview はIDでレビューを取得する。
func (s *Store) GetReview(ctx context.Context, id string) (model.Review, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id)
	r, err := scanReview(row)
	if err == sql.ErrNoRows {
		return model.Review{}, store.ErrNotFound
	}
	if err != nil {
		return model.Review{}, fmt.Errorf("レビューの取得に失敗: %w", err)
	}
	return r, nil
}

// UpdateReview はレビューの評価値とコメントを部分更新し、更新直前のレビューを返す。
// 読み取りと更新は1つのトランザクションで行う。
func (s *Store) UpdateReview(ctx context.Context, id string, p model.ReviewPatch) (model.Review, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Review{}, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := scanReview(tx.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, store.ErrNotFound
	}
	if err != nil {
		return model.Review{}, fmt.Errorf("レビューの取得に失敗: %w", err)
	}

	var c setClause
	add(&c, "rating", p.Rating)
	add(&c, "comment", p.Comment)
	if err := c.exec(ctx, tx, "reviews", id); err != nil {
		return model.Review{}, fmt.Errorf("レビューの更新に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Review{}, fmt.Errorf("レビューの更新に失敗: %w", err)
	}
	return prev, nil
}

// DeleteReview はレビューを削除し、削除したレビューを返す。
func (s *Store) DeleteReview(ctx context.Context, id string) (model.Review, error) {
	row := s.db.QueryRowContext(ctx, "DELETE FROM reviews WHERE id = ? RETURNING "+reviewColumns, id)
	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, store.ErrNotFound
	}
	if err != nil {
		return model.Review{}, fmt.Errorf("レビューの削除に失敗: %w", err)
	}
	return r, nil
}

// ListReviews は条件に一致するレビューを作成順に返す。
func (s *Store) ListReviews(ctx context.Context, f model.Filter) ([]model.Review, error) {
	where, args := filterClause(f)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews"+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]model.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("レビューの読み取りに失敗: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
