package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/rating"
)

// scholarshipDoc は奨学金コレクションのドキュメント。
type scholarshipDoc struct {
	model.Scholarship `bson:",inline"`

	ID          primitive.ObjectID `bson:"_id,omitempty"`
	RatingSum   float64            `bson:"ratingSum"`
	ReviewCount int64              `bson:"reviewCount"`
}

func (d scholarshipDoc) toModel() model.Scholarship {
	s := d.Scholarship
	agg := rating.Aggregate{Sum: d.RatingSum, Count: d.ReviewCount}
	s.ID = d.ID.Hex()
	s.Rating = agg.Mean()
	s.ReviewCount = agg.Count
	return s
}

// CreateScholarship は奨学金を作成する。掲載日が未指定の場合は現在時刻を使う。
func (s *Store) CreateScholarship(ctx context.Context, sch model.Scholarship) (model.Scholarship, error) {
	if sch.PostDate.IsZero() {
		sch.PostDate = time.Now()
	}
	sch.PostDate = sch.PostDate.UTC()

	doc := scholarshipDoc{ID: primitive.NewObjectID(), Scholarship: sch}
	if _, err := s.scholarships.InsertOne(ctx, doc); err != nil {
		return model.Scholarship{}, fmt.Errorf("奨学金の作成に失敗: %w", err)
	}
	return doc.toModel(), nil
}

// GetScholarship はIDで奨学金を取得する。
func (s *Store) GetScholarship(ctx context.Context, id string) (model.Scholarship, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Scholarship{}, err
	}
	var doc scholarshipDoc
	if err := s.scholarships.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return model.Scholarship{}, notFound(err)
	}
	return doc.toModel(), nil
}

// GetScholarshipsByIDs は複数の奨学金をまとめて取得する。形式が不正なIDは無視する。
func (s *Store) GetScholarshipsByIDs(ctx context.Context, ids []string) (map[string]model.Scholarship, error) {
	result := make(map[string]model.Scholarship, len(ids))
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := parseID(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return result, nil
	}

	cur, err := s.scholarships.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
	if err != nil {
		return nil, fmt.Errorf("奨学金の一括取得に失敗: %w", err)
	}
	list, err := decodeAll(ctx, cur, scholarshipDoc.toModel)
	if err != nil {
		return nil, fmt.Errorf("奨学金の読み取りに失敗: %w", err)
	}
	for _, sch := range list {
		result[sch.ID] = sch
	}
	return result, nil
}

// scholarshipUpdate は部分更新内容を$setのドキュメントに変換する。
func scholarshipUpdate(p model.ScholarshipPatch) bson.D {
	d := bson.D{}
	d = set(d, "scholarshipName", p.ScholarshipName)
	d = set(d, "universityName", p.UniversityName)
	d = set(d, "universityImage", p.UniversityImage)
	d = set(d, "universityCountry", p.UniversityCountry)
	d = set(d, "universityCity", p.UniversityCity)
	d = set(d, "universityWorldRank", p.UniversityWorldRank)
	d = set(d, "subjectCategory", p.SubjectCategory)
	d = set(d, "scholarshipCategory", p.ScholarshipCategory)
	d = set(d, "degree", p.Degree)
	d = set(d, "tuitionFees", p.TuitionFees)
	d = set(d, "applicationFees", p.ApplicationFees)
	d = set(d, "serviceCharge", p.ServiceCharge)
	d = set(d, "applicationDeadline", p.ApplicationDeadline)
	if p.PostDate != nil {
		postDate := p.PostDate.UTC()
		d = set(d, "scholarshipPostDate", &postDate)
	}
	d = set(d, "scholarshipDescription", p.ScholarshipDescription)
	return d
}

// UpdateScholarship は奨学金の記述的なフィールドを部分更新する。
func (s *Store) UpdateScholarship(ctx context.Context, id string, p model.ScholarshipPatch) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	update := scholarshipUpdate(p)
	if len(update) == 0 {
		_, err := s.GetScholarship(ctx, id)
		return err
	}

	res, err := s.scholarships.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: update}},
	)
	if err != nil {
		return fmt.Errorf("奨学金の更新に失敗: %w", err)
	}
	return matchedOne(res)
}

// DeleteScholarship は奨学金を削除する。
func (s *Store) DeleteScholarship(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.scholarships.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("奨学金の削除に失敗: %w", err)
	}
	return deletedOne(res)
}

// ListScholarships は検索条件に一致する奨学金を作成順に返す。
func (s *Store) ListScholarships(ctx context.Context, q model.ScholarshipQuery) ([]model.Scholarship, int64, error) {
	filter := searchFilter(q.Search)

	total, err := s.scholarships.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("奨学金の件数取得に失敗: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if q.PageSize > 0 {
		opts.SetSkip(int64(q.Offset())).SetLimit(int64(q.PageSize))
	}
	cur, err := s.scholarships.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("奨学金一覧の取得に失敗: %w", err)
	}
	list, err := decodeAll(ctx, cur, scholarshipDoc.toModel)
	if err != nil {
		return nil, 0, fmt.Errorf("奨学金の読み取りに失敗: %w", err)
	}
	return list, total, nil
}

// TopScholarships は応募料の安い順、同額なら掲載日の新しい順に最大limit件返す。
func (s *Store) TopScholarships(ctx context.Context, limit int) ([]model.Scholarship, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "applicationFees", Value: 1}, {Key: "scholarshipPostDate", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.scholarships.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("人気の奨学金の取得に失敗: %w", err)
	}
	return decodeAll(ctx, cur, scholarshipDoc.toModel)
}

// AdjustRating は評価合計と件数をパイプライン更新1回で増減する。
func (s *Store) AdjustRating(ctx context.Context, id string, sumDelta float64, countDelta int64) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.scholarships.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, ratingPipeline(sumDelta, countDelta))
	if err != nil {
		return fmt.Errorf("評価集計の更新に失敗: %w", err)
	}
	return matchedOne(res)
}

// SetRating は評価合計と件数を上書きする。
func (s *Store) SetRating(ctx context.Context, id string, sum float64, count int64) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.scholarships.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "ratingSum", Value: sum},
			{Key: "reviewCount", Value: count},
		}}},
	)
	if err != nil {
		return fmt.Errorf("評価集計の上書きに失敗: %w", err)
	}
	return matchedOne(res)
}

// ScholarshipIDs は全奨学金のIDを作成順に返す。
func (s *Store) ScholarshipIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.scholarships.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("奨学金IDの取得に失敗: %w", err)
	}
	return decodeAll(ctx, cur, func(doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}) string {
		return doc.ID.Hex()
	})
}
