package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/rating"
	"github.com/nao1215/scholarhub/internal/store"
)

const scholarshipColumns = `id, scholarship_name, university_name, university_image, university_country,
	university_city, university_world_rank, subject_category, scholarship_category, degree,
	tuition_fees, application_fees, service_charge, application_deadline, post_date,
	posted_user_email, description, rating_sum, review_count`

// scanScholarship は1行を奨学金に変換する。平均評価は合計と件数から求める。
func scanScholarship(row interface{ Scan(...any) error }) (model.Scholarship, error) {
	var s model.Scholarship
	var agg rating.Aggregate
	if err := row.Scan(
		&s.ID, &s.ScholarshipName, &s.UniversityName, &s.UniversityImage, &s.UniversityCountry,
		&s.UniversityCity, &s.UniversityWorldRank, &s.SubjectCategory, &s.ScholarshipCategory, &s.Degree,
		&s.TuitionFees, &s.ApplicationFees, &s.ServiceCharge, &s.ApplicationDeadline, &s.PostDate,
		&s.PostedUserEmail, &s.ScholarshipDescription, &agg.Sum, &agg.Count,
	); err != nil {
		return model.Scholarship{}, err
	}
	s.Rating = agg.Mean()
	s.ReviewCount = agg.Count
	return s, nil
}

func (s *Store) queryScholarships(ctx context.Context, query string, args ...any) ([]model.Scholarship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	list := make([]model.Scholarship, 0)
	for rows.Next() {
		sch, err := scanScholarship(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, sch)
	}
	return list, rows.Err()
}

// CreateScholarship は奨学金を作成する。掲載日が未指定の場合は現在時刻を使う。
func (s *Store) CreateScholarship(ctx context.Context, sch model.Scholarship) (model.Scholarship, error) {
	sch.ID = uuid.New().String()
	if sch.PostDate.IsZero() {
		sch.PostDate = time.Now()
	}
	sch.PostDate = sch.PostDate.UTC()
	sch.Rating = 0
	sch.ReviewCount = 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scholarships (`+scholarshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		sch.ID, sch.ScholarshipName, sch.UniversityName, sch.UniversityImage, sch.UniversityCountry,
		sch.UniversityCity, sch.UniversityWorldRank, sch.SubjectCategory, sch.ScholarshipCategory, sch.Degree,
		sch.TuitionFees, sch.ApplicationFees, sch.ServiceCharge, sch.ApplicationDeadline, sch.PostDate,
		sch.PostedUserEmail, sch.ScholarshipDescription,
	)
	if err != nil {
		return model.Scholarship{}, fmt.Errorf("奨学金の作成に失敗: %w", err)
	}
	return sch, nil
}

// GetScholarship はIDで奨学金を取得する。
func (s *Store) GetScholarship(ctx context.Context, id string) (model.Scholarship, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+scholarshipColumns+" FROM scholarships WHERE id = ?", id)
	sch, err := scanScholarship(row)
	if err == sql.ErrNoRows {
		return model.Scholarship{}, store.ErrNotFound
	}
	if err != nil {
		return model.Scholarship{}, fmt.Errorf("奨学金の取得に失敗: %w", err)
	}
	return sch, nil
}

// GetScholarshipsByIDs は複数の奨学金をまとめて取得する。
func (s *Store) GetScholarshipsByIDs(ctx context.Context, ids []string) (map[string]model.Scholarship, error) {
	result := make(map[string]model.Scholarship, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	list, err := s.queryScholarships(ctx,
		"SELECT "+scholarshipColumns+" FROM scholarships WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("奨学金の一括取得に失敗: %w", err)
	}
	for _, sch := range list {
		result[sch.ID] = sch
	}
	return result, nil
}

// UpdateScholarship は奨学金の記述的なフィールドを部分更新する。評価集計は更新しない。
func (s *Store) UpdateScholarship(ctx context.Context, id string, p model.ScholarshipPatch) error {
	var c setClause
	add(&c, "scholarship_name", p.ScholarshipName)
	add(&c, "university_name", p.UniversityName)
	add(&c, "university_image", p.UniversityImage)
	add(&c, "university_country", p.UniversityCountry)
	add(&c, "university_city", p.UniversityCity)
	add(&c, "university_world_rank", p.UniversityWorldRank)
	add(&c, "subject_category", p.SubjectCategory)
	add(&c, "scholarship_category", p.ScholarshipCategory)
	add(&c, "degree", p.Degree)
	add(&c, "tuition_fees", p.TuitionFees)
	add(&c, "application_fees", p.ApplicationFees)
	add(&c, "service_charge", p.ServiceCharge)
	add(&c, "application_deadline", p.ApplicationDeadline)
	if p.PostDate != nil {
		postDate := p.PostDate.UTC()
		add(&c, "post_date", &postDate)
	}
	add(&c, "description", p.ScholarshipDescription)

	if err := c.exec(ctx, s.db, "scholarships", id); err != nil {
		return fmt.Errorf("奨学金の更新に失敗: %w", err)
	}
	return nil
}

// DeleteScholarship は奨学金を削除する。
func (s *Store) DeleteScholarship(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scholarships WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("奨学金の削除に失敗: %w", err)
	}
	return expectOne(res)
}

// ListScholarships は検索条件に一致する奨学金を作成順に返す。
func (s *Store) ListScholarships(ctx context.Context, q model.ScholarshipQuery) ([]model.Scholarship, int64, error) {
	where := ""
	var args []any
	if q.Search != "" {
		where = ` WHERE instr(casefold(scholarship_name), ?1) > 0 OR instr(casefold(university_name), ?1) > 0 OR instr(casefold(degree), ?1) > 0`
		args = append(args, casefold(q.Search))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scholarships"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("奨学金の件数取得に失敗: %w", err)
	}

	limit := -1
	if q.PageSize > 0 {
		limit = q.PageSize
	}
	list, err := s.queryScholarships(ctx,
		"SELECT "+scholarshipColumns+" FROM scholarships"+where+" ORDER BY rowid LIMIT ? OFFSET ?",
		append(args, limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("奨学金一覧の取得に失敗: %w", err)
	}
	return list, total, nil
}

// TopScholarships は応募料の安い順、同額なら掲載日の新しい順に最大limit件返す。
func (s *Store) TopScholarships(ctx context.Context, limit int) ([]model.Scholarship, error) {
	list, err := s.queryScholarships(ctx,
		"SELECT "+scholarshipColumns+" FROM scholarships ORDER BY application_fees ASC, post_date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("人気の奨学金の取得に失敗: %w", err)
	}
	return list, nil
}

// AdjustRating は評価合計と件数を1つのUPDATE文で増減する。
// UPDATE文の右辺はすべて更新前の値を参照するため、件数の判定と合計の更新は同じ行の値で行われる。
func (s *Store) AdjustRating(ctx context.Context, id string, sumDelta float64, countDelta int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scholarships SET
			rating_sum = CASE WHEN review_count + ?1 <= 0 THEN 0 ELSE rating_sum + ?2 END,
			review_count = MAX(review_count + ?1, 0)
		WHERE id = ?3`,
		countDelta, sumDelta, id,
	)
	if err != nil {
		return fmt.Errorf("評価集計の更新に失敗: %w", err)
	}
	return expectOne(res)
}

// SetRating は評価合計と件数を上書きする。
func (s *Store) SetRating(ctx context.Context, id string, sum float64, count int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE scholarships SET rating_sum = ?, review_count = ? WHERE id = ?", sum, count, id)
	if err != nil {
		return fmt.Errorf("評価集計の上書きに失敗: %w", err)
	}
	return expectOne(res)
}

// ScholarshipIDs は全奨学金のIDを作成順に返す。
func (s *Store) ScholarshipIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM scholarships ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("奨学金IDの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
