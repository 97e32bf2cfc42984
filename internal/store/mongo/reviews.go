package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/scholarhub/internal/model"
)

// reviewDoc はレビューコレクションのドキュメント。
type reviewDoc struct {
	model.Review `bson:",inline"`

	ID primitive.ObjectID `bson:"_id,omitempty"`
}

func (d reviewDoc) toModel() model.Review {
	r := d.Review
	r.ID = d.ID.Hex()
	return r
}

// CreateReview はレビューを作成する。投稿日が未指定の場合は現在時刻を使う。
func (s *Store) CreateReview(ctx context.Context, r model.Review) (model.Review, error) {
	if r.ReviewDate.IsZero() {
		r.ReviewDate = time.Now()
	}
	r.ReviewDate = r.ReviewDate.UTC()

	doc := reviewDoc{ID: primitive.NewObjectID(), Review: r}
	if _, err := s.reviews.InsertOne(ctx, doc); err != nil {
		return model.Review{}, fmt.Errorf("レビューの作成に失敗: %w", err)
	}
	return doc.toModel(), nil
}

// RestoreReview は削除したレビューを同じIDで再作成する。
func (s *Store) RestoreReview(ctx context.Context, r model.Review) error {
	oid, err := parseID(r.ID)
	if err != nil {
		return err
	}
	if _, err := s.reviews.InsertOne(ctx, reviewDoc{ID: oid, Review: r}); err != nil {
		return fmt.Errorf("レビューの復元に失敗: %w", err)
	}
	return nil
}

// GetReview はIDでレビューを取得する。
func (s *Store) GetReview(ctx context.Context, id string) (model.Review, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Review{}, err
	}
	var doc reviewDoc
	if err := s.reviews.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return model.Review{}, notFound(err)
	}
	return doc.toModel(), nil
}

// UpdateReview はレビューの評価値とコメントを部分更新し、更新直前のレビューを返す。
func (s *Store) UpdateReview(ctx context.Context, id string, p model.ReviewPatch) (model.Review, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Review{}, err
	}
	update := bson.D{}
	update = set(update, "rating", p.Rating)
	update = set(update, "comment", p.Comment)
	if len(update) == 0 {
		return s.GetReview(ctx, id)
	}

	var before reviewDoc
	err = s.reviews.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: update}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return model.Review{}, fmt.Errorf("レビューの更新に失敗: %w", notFound(err))
	}
	return before.toModel(), nil
}

// DeleteReview はレビューを削除し、削除したレビューを返す。
func (s *Store) DeleteReview(ctx context.Context, id string) (model.Review, error) {
	oid, err := parseID(id)
	if err != nil {
		return model.Review{}, err
	}
	var removed reviewDoc
	if err := s.reviews.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&removed); err != nil {
		return model.Review{}, fmt.Errorf("レビューの削除に失敗: %w", notFound(err))
	}
	return removed.toModel(), nil
}

// ListReviews は条件に一致するレビューを作成順に返す。
func (s *Store) ListReviews(ctx context.Context, f model.Filter) ([]model.Review, error) {
	cur, err := s.reviews.Find(ctx, filterDoc(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗: %w", err)
	}
	return decodeAll(ctx, cur, reviewDoc.toModel)
}
