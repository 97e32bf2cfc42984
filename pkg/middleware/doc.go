// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの生成と検証、リクエストログ、パニックリカバリ、
// CORS設定など、ルーター全体で共通して使用するミドルウェアを含む。
// ロールに基づくアクセス制御は internal/access が担当する。
package middleware
