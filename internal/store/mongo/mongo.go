// Package mongo はMongoDBを使ったstore.Storeの実装を提供する。
//
// 奨学金・応募・レビューはObjectIDを16進文字列としてAPIに公開する。
// 評価集計はパイプライン更新1回で加算するため、同時にレビューが投稿されても更新は失われない。
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/logger"
)

const (
	usersCollection        = "users"
	scholarshipsCollection = "scholarships"
	applicationsCollection = "applications"
	reviewsCollection      = "reviews"
)

// Store はMongoDBをバックエンドとするストア。
type Store struct {
	client       *mongo.Client
	users        *mongo.Collection
	scholarships *mongo.Collection
	applications *mongo.Collection
	reviews      *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open はMongoDBに接続し、疎通確認とインデックス作成を行う。
func Open(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("MongoDBへの接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDBへの疎通確認に失敗: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		users:        db.Collection(usersCollection),
		scholarships: db.Collection(scholarshipsCollection),
		applications: db.Collection(applicationsCollection),
		reviews:      db.Collection(reviewsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("インデックスの作成に失敗: %w", err)
	}
	logger.Infof("MongoDBに接続しました: database=%s", database)
	return s, nil
}

// ensureIndexes は一意制約と検索用のインデックスを作成する。既に存在する場合は何もしない。
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.users, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "role", Value: 1}}}},
		{s.scholarships, mongo.IndexModel{
			Keys: bson.D{{Key: "applicationFees", Value: 1}, {Key: "scholarshipPostDate", Value: -1}},
		}},
		{s.applications, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "scholarshipId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.applications, mongo.IndexModel{Keys: bson.D{{Key: "scholarshipId", Value: 1}}}},
		{s.reviews, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}}},
		{s.reviews, mongo.IndexModel{Keys: bson.D{{Key: "scholarshipId", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return err
		}
	}
	return nil
}

// Ping はMongoDBへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close はMongoDBとの接続を切断する。
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// parseID は16進文字列のIDをObjectIDに変換する。
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrInvalidID
	}
	return oid, nil
}

// notFound はドキュメントが見つからなかった場合のエラーをstore.ErrNotFoundに変換する。
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// matchedOne は更新対象が見つからなかった場合にErrNotFoundを返す。
func matchedOne(res *mongo.UpdateResult) error {
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// deletedOne は削除対象が見つからなかった場合にErrNotFoundを返す。
func deletedOne(res *mongo.DeleteResult) error {
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// set は値がnilでない場合のみ$setのフィールドを追加する。
func set[T any](d bson.D, key string, v *T) bson.D {
	if v == nil {
		return d
	}
	return append(d, bson.E{Key: key, Value: *v})
}

// filterDoc は絞り込み条件からクエリを組み立てる。
func filterDoc(f model.Filter) bson.D {
	filter := bson.D{}
	if f.Email != "" {
		filter = append(filter, bson.E{Key: "email", Value: f.Email})
	}
	if f.ScholarshipID != "" {
		filter = append(filter, bson.E{Key: "scholarshipId", Value: f.ScholarshipID})
	}
	return filter
}

// searchFilter は奨学金名・大学名・学位に対する大文字小文字を区別しない部分一致条件を組み立てる。
// 検索語の正規表現メタ文字はエスケープしてリテラルとして扱う。
func searchFilter(search string) bson.D {
	if search == "" {
		return bson.D{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "scholarshipName", Value: pattern}},
		bson.D{{Key: "universityName", Value: pattern}},
		bson.D{{Key: "degree", Value: pattern}},
	}}}
}

// ratingPipeline は評価合計と件数を原子的に増減するパイプライン更新を組み立てる。
// 同じ$setステージ内のフィールド参照はすべて更新前の値を指す。
func ratingPipeline(sumDelta float64, countDelta int64) mongo.Pipeline {
	nextCount := bson.D{{Key: "$add", Value: bson.A{"$reviewCount", countDelta}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "ratingSum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$lte", Value: bson.A{nextCount, 0}}},
				0.0,
				bson.D{{Key: "$add", Value: bson.A{"$ratingSum", sumDelta}}},
			}}}},
			{Key: "reviewCount", Value: bson.D{{Key: "$max", Value: bson.A{nextCount, 0}}}},
		}}},
	}
}

// decodeAll はカーソルの全ドキュメントをデコードし、変換関数を適用する。
func decodeAll[D any, T any](ctx context.Context, cur *mongo.Cursor, convert func(D) T) ([]T, error) {
	defer func() { _ = cur.Close(ctx) }()

	list := make([]T, 0)
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		list = append(list, convert(doc))
	}
	return list, cur.Err()
}
