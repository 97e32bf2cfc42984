package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
)

const applicationColumns = `id, email, scholarship_id, user_name, phone, photo, address, gender,
	degree, ssc_result, hsc_result, study_gap, status, feedback, applied_at`

func scanApplication(row interface{ Scan(...any) error }) (model.Application, error) {
	var a model.Application
	var status string
	if err := row.Scan(
		&a.ID, &a.Email, &a.ScholarshipID, &a.UserName, &a.Phone, &a.Photo, &a.Address, &a.Gender,
		&a.Degree, &a.SSCResult, &a.HSCResult, &a.StudyGap, &status, &a.Feedback, &a.AppliedAt,
	); err != nil {
		return model.Application{}, err
	}
	a.Status = model.ApplicationStatus(status)
	return a, nil
}

// prepareApplication は新規応募の既定値を設定する。
func prepareApplication(a model.Application) model.Application {
	a.ID = uuid.New().String()
	a.Status = model.StatusPending
	a.Feedback = ""
	if a.AppliedAt.IsZero() {
		a.AppliedAt = time.Now()
	}
	a.AppliedAt = a.AppliedAt.UTC()
	return a
}

// CreateApplication は応募を作成する。同じ奨学金への応募が既にある場合はErrConflictを返す。
func (s *Store) CreateApplication(ctx context.Context, a model.Application) (model.Application, error) {
	a = prepareApplication(a)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email, scholarship_id) DO NOTHING`,
		a.ID, a.Email, a.ScholarshipID, a.UserName, a.Phone, a.Photo, a.Address, a.Gender,
		a.Degree, a.SSCResult, a.HSCResult, a.StudyGap, string(a.Status), a.Feedback, a.AppliedAt,
	)
	if err != nil {
		return model.Application{}, fmt.Errorf("応募の作成に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Application{}, fmt.Errorf("影響行数の取得に失敗: %w", err)
	}
	if n == 0 {
		return model.Application{}, store.ErrConflict
	}
	return a, nil
}

// UpsertApplication は(email, scholarshipId)をキーに応募を作成または更新する。
// 既存の応募では応募者のフィールドのみ更新し、審査状態は維持する。
func (s *Store) UpsertApplication(ctx context.Context, a model.Application) (model.Application, error) {
	a = prepareApplication(a)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email, scholarship_id) DO UPDATE SET
			user_name = excluded.user_name,
			phone = excluded.phone,
			photo = excluded.photo,
			address = excluded.address,
			gender = excluded.gender,
			degree = excluded.degree,
			ssc_result = excluded.ssc_result,
			hsc_result = excluded.hsc_result,
			study_gap = excluded.study_gap`,
		a.ID, a.Email, a.ScholarshipID, a.UserName, a.Phone, a.Photo, a.Address, a.Gender,
		a.Degree, a.SSCResult, a.HSCResult, a.StudyGap, string(a.Status), a.Feedback, a.AppliedAt,
	)
	if err != nil {
		return model.Application{}, fmt.Errorf("応募の保存に失敗: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE email = ? AND scholarship_id = ?",
		a.Email, a.ScholarshipID)
	saved, err := scanApplication(row)
	if err != nil {
		return model.Application{}, fmt.Errorf("保存した応募の取得に失敗: %w", err)
	}
	return saved, nil
}

// GetApplication はIDで応募を取得する。
func (s *Store) GetApplication(ctx context.Context, id string) (model.Application, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE id = ?", id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return model.Application{}, store.ErrNotFound
	}
	if err != nil {
		return model.Application{}, fmt.Errorf("応募の取得に失敗: %w", err)
	}
	return a, nil
}

// UpdateApplication は応募者のフィールドを部分更新する。
func (s *Store) UpdateApplication(ctx context.Context, id string, p model.ApplicationPatch) error {
	var c setClause
	add(&c, "user_name", p.UserName)
	add(&c, "phone", p.Phone)
	add(&c, "photo", p.Photo)
	add(&c, "address", p.Address)
	add(&c, "gender", p.Gender)
	add(&c, "degree", p.Degree)
	add(&c, "ssc_result", p.SSCResult)
	add(&c, "hsc_result", p.HSCResult)
	add(&c, "study_gap", p.StudyGap)

	if err := c.exec(ctx, s.db, "applications", id); err != nil {
		return fmt.Errorf("応募の更新に失敗: %w", err)
	}
	return nil
}

// ReviewApplication は審査状態とフィードバックを更新する。
func (s *Store) ReviewApplication(ctx context.Context, id string, r model.ApplicationReview) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE applications SET status = ?, feedback = ? WHERE id = ?", string(r.Status), r.Feedback, id)
	if err != nil {
		return fmt.Errorf("応募の審査結果の更新に失敗: %w", err)
	}
	return expectOne(res)
}

// DeleteApplication は応募を削除する。
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM applications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("応募の削除に失敗: %w", err)
	}
	return expectOne(res)
}

// ListApplications は条件に一致する応募を作成順に返す。
func (s *Store) ListApplications(ctx context.Context, f model.Filter) ([]model.Application, error) {
	where, args := filterClause(f)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+applicationColumns+" FROM applications"+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("応募一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]model.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("応募の読み取りに失敗: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// filterClause は絞り込み条件からWHERE句を組み立てる。
func filterClause(f model.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Email != "" {
		conds = append(conds, "email = ?")
		args = append(args, f.Email)
	}
	if f.ScholarshipID != "" {
		conds = append(conds, "scholarship_id = ?")
		args = append(args, f.ScholarshipID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
