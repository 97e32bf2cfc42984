// Package store はドキュメントストアへのアクセスを抽象化する。
//
// ユーザー・奨学金・応募・レビューの4コレクションを扱うStoreインターフェースと、
// バックエンド共通のエラーを定義する。実装は store/sqlite と store/mongo にある。
package store

import (
	"context"
	"errors"

	"github.com/nao1215/scholarhub/internal/model"
)

var (
	// ErrNotFound は参照したドキュメントが存在しないことを表す。
	ErrNotFound = errors.New("ドキュメントが見つかりません")
	// ErrConflict は一意制約に違反したことを表す。
	ErrConflict = errors.New("ドキュメントが既に存在します")
	// ErrInvalidID はドキュメントIDの形式が不正であることを表す。
	ErrInvalidID = errors.New("ドキュメントIDの形式が不正です")
)

// Users はユーザーコレクションの操作。
type Users interface {
	// CreateUserIfAbsent はメールアドレスが未登録の場合のみユーザーを作成する。
	// 作成した場合はtrueを返す。
	CreateUserIfAbsent(ctx context.Context, u model.User) (bool, error)
	// UpsertUser はメールアドレスをキーにプロフィールを作成または更新する。ロールは変更しない。
	UpsertUser(ctx context.Context, u model.User) error
	// GetUser はメールアドレスでユーザーを取得する。
	GetUser(ctx context.Context, email string) (model.User, error)
	// ListUsers はユーザー一覧を返す。roleが空でなければそのロールで絞り込む。
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
	// UpdateUserRole はユーザーのロールを変更する。
	UpdateUserRole(ctx context.Context, email string, role model.Role) error
	// DeleteUser はユーザーを削除する。
	DeleteUser(ctx context.Context, email string) error
	// RoleOf はユーザーの保存済みロールを返す。キャッシュしない。
	RoleOf(ctx context.Context, email string) (model.Role, error)
}

// Scholarships は奨学金コレクションの操作。
type Scholarships interface {
	// CreateScholarship は奨学金を作成する。評価集計は0件の状態で始まる。
	CreateScholarship(ctx context.Context, s model.Scholarship) (model.Scholarship, error)
	// GetScholarship はIDで奨学金を取得する。
	GetScholarship(ctx context.Context, id string) (model.Scholarship, error)
	// GetScholarshipsByIDs は複数の奨学金をまとめて取得する。存在しないIDは結果に含まれない。
	GetScholarshipsByIDs(ctx context.Context, ids []string) (map[string]model.Scholarship, error)
	// UpdateScholarship は奨学金の記述的なフィールドを部分更新する。
	UpdateScholarship(ctx context.Context, id string, patch model.ScholarshipPatch) error
	// DeleteScholarship は奨学金を削除する。関連するレビューと応募は削除しない。
	DeleteScholarship(ctx context.Context, id string) error
	// ListScholarships は検索条件に一致する奨学金を作成順に返す。2番目の戻り値は条件に一致する総件数。
	ListScholarships(ctx context.Context, q model.ScholarshipQuery) ([]model.Scholarship, int64, error)
	// TopScholarships は応募料の安い順、同額なら掲載日の新しい順に最大limit件返す。
	TopScholarships(ctx context.Context, limit int) ([]model.Scholarship, error)
	// AdjustRating は評価合計と件数を1回の原子的な更新で増減する。
	// 件数が0以下になる場合は合計と件数をともに0にする。
	AdjustRating(ctx context.Context, id string, sumDelta float64, countDelta int64) error
	// SetRating は評価合計と件数を上書きする。集計の再構築に使用する。
	SetRating(ctx context.Context, id string, sum float64, count int64) error
	// ScholarshipIDs は全奨学金のIDを返す。
	ScholarshipIDs(ctx context.Context) ([]string, error)
}

// Applications は応募コレクションの操作。
type Applications interface {
	// CreateApplication は応募を作成する。同じ(email, scholarshipId)が既にあればErrConflictを返す。
	CreateApplication(ctx context.Context, a model.Application) (model.Application, error)
	// UpsertApplication は(email, scholarshipId)をキーに応募を作成または更新する。
	UpsertApplication(ctx context.Context, a model.Application) (model.Application, error)
	// GetApplication はIDで応募を取得する。
	GetApplication(ctx context.Context, id string) (model.Application, error)
	// UpdateApplication は応募者のフィールドを部分更新する。
	UpdateApplication(ctx context.Context, id string, patch model.ApplicationPatch) error
	// ReviewApplication は審査状態とフィードバックを更新する。
	ReviewApplication(ctx context.Context, id string, r model.ApplicationReview) error
	// DeleteApplication は応募を削除する。
	DeleteApplication(ctx context.Context, id string) error
	// ListApplications は条件に一致する応募を作成順に返す。
	ListApplications(ctx context.Context, f model.Filter) ([]model.Application, error)
}

// Reviews はレビューコレクションの操作。
type Reviews interface {
	// CreateReview はレビューを作成する。
	CreateReview(ctx context.Context, r model.Review) (model.Review, error)
	// RestoreReview は削除したレビューを同じIDで再作成する。補償処理に使用する。
	RestoreReview(ctx context.Context, r model.Review) error
	// GetReview はIDでレビューを取得する。
	GetReview(ctx context.Context, id string) (model.Review, error)
	// UpdateReview はレビューを部分更新し、更新直前のレビューを返す。
	// 返すレビューは更新と不可分に読み取ったもので、同時更新があっても評価値の差分計算に使える。
	UpdateReview(ctx context.Context, id string, patch model.ReviewPatch) (model.Review, error)
	// DeleteReview はレビューを削除し、削除したレビューを返す。
	DeleteReview(ctx context.Context, id string) (model.Review, error)
	// ListReviews は条件に一致するレビューを作成順に返す。
	ListReviews(ctx context.Context, f model.Filter) ([]model.Review, error)
}

// Store はすべてのコレクション操作とライフサイクルを束ねる。
type Store interface {
	Users
	Scholarships
	Applications
	Reviews
	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
	// Close はストアへの接続を閉じる。
	Close(ctx context.Context) error
}
