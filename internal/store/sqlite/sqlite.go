// Package sqlite はSQLiteを使ったstore.Storeの実装を提供する。
//
// スキーマはembedされたマイグレーションで管理する。評価集計はUPDATE文1つで
// 加算するため、同時にレビューが投稿されても更新は失われない。
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	moderncsqlite "modernc.org/sqlite"

	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// MemoryPath はインメモリデータベースを表すパス。
const MemoryPath = ":memory:"

// Store はSQLiteをバックエンドとするストア。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func init() {
	if err := moderncsqlite.RegisterDeterministicScalarFunction("casefold", 1, casefoldFunc); err != nil {
		panic(fmt.Sprintf("SQL関数casefoldの登録に失敗: %v", err))
	}
}

// casefoldFunc はSQL関数 casefold(text) の実装。NULLはNULLのまま返す。
func casefoldFunc(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return casefold(v), nil
	case []byte:
		return casefold(string(v)), nil
	default:
		return casefold(fmt.Sprint(v)), nil
	}
}

// casefold は大文字小文字を区別しない比較のためにUnicodeのケースフォールディングを行う。
// MongoDBの正規表現の i オプションと同じく、ASCII以外の文字も対象にする。
func casefold(s string) string {
	return cases.Fold().String(s)
}

// Open はSQLiteデータベースを開き、疎通確認とマイグレーションを行う。
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == MemoryPath {
		// インメモリDBは接続ごとに別のDBになるため1接続に固定する
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(ctx, sqlDB, migrationsFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: sqlDB}, nil
}

// dsn はファイルパスからmodernc.org/sqlite用の接続文字列を組み立てる。
// トランザクションはBEGIN IMMEDIATEで開始し、読み取りの時点で書き込みロックを取る。
func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

// expectOne は更新・削除の影響行数が0の場合にErrNotFoundを返す。
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("影響行数の取得に失敗: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// setClause は部分更新のSET句を組み立てる。
type setClause struct {
	columns []string
	args    []any
}

// add は値がnilでない場合のみ列を追加する。
func add[T any](c *setClause, column string, v *T) {
	if v == nil {
		return
	}
	c.columns = append(c.columns, column+" = ?")
	c.args = append(c.args, *v)
}

func (c *setClause) empty() bool {
	return len(c.columns) == 0
}

// querier は*sql.DBと*sql.Txに共通する操作。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// exec はSET句をidで絞り込んだUPDATE文として実行する。
// 更新する列が無い場合は行の存在確認のみ行う。
func (c *setClause) exec(ctx context.Context, db querier, table, id string) error {
	if c.empty() {
		var one int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return store.ErrNotFound
		}
		return err
	}

	query := "UPDATE " + table + " SET " + strings.Join(c.columns, ", ") + " WHERE id = ?"
	res, err := db.ExecContext(ctx, query, append(c.args, id)...)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// placeholders はn個のプレースホルダをカンマ区切りで返す。
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
