// Package access はリクエストの受け入れ可否を判定するアクセスゲートを提供する。
//
// ゲートはJWTの検証、クエリパラメータ email との本人一致確認、
// ロールの確認をこの順に行い、ルートごとに静的に宣言されたPolicyに従って判定する。
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/logger"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// CookieName はcookieモードで資格情報を運ぶcookieの名前。
const CookieName = "token"

// ClaimParam は本人確認に使うクエリパラメータ名。
const ClaimParam = "email"

// Decision はゲートの判定結果。
type Decision int

const (
	// Admitted は受け入れ。
	Admitted Decision = iota
	// Unauthenticated は資格情報が無い、または検証に失敗した。
	Unauthenticated
	// IdentityMismatch は資格情報の本人とクエリの email が一致しない。
	IdentityMismatch
	// Forbidden はロールがルートの許可対象に含まれない。
	Forbidden
)

// String は判定結果の名前を返す。
func (d Decision) String() string {
	switch d {
	case Admitted:
		return "Admitted"
	case Unauthenticated:
		return "Unauthenticated"
	case IdentityMismatch:
		return "IdentityMismatch"
	case Forbidden:
		return "Forbidden"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Status は判定結果に対応するHTTPステータスコードを返す。
func (d Decision) Status() int {
	switch d {
	case Admitted:
		return http.StatusOK
	case Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

func (d Decision) message() string {
	switch d {
	case Unauthenticated:
		return "認証が必要です"
	case IdentityMismatch:
		return "トークンとメールアドレスが一致しません"
	default:
		return "この操作を行う権限がありません"
	}
}

// Policy はルートごとのアクセス方針。
type Policy struct {
	// RequiresAuth がfalseの場合は判定を行わずに受け入れる。
	RequiresAuth bool
	// AllowedRoles が空でない場合、保存済みロールがいずれかに一致する必要がある。
	AllowedRoles []model.Role
}

var (
	// Public は認証不要のルート。
	Public = Policy{}
	// Authenticated は本人確認のみを行うルート。
	Authenticated = Policy{RequiresAuth: true}
	// AdminOnly は管理者のみのルート。
	AdminOnly = Policy{RequiresAuth: true, AllowedRoles: []model.Role{model.RoleAdmin}}
	// Staff はモデレーターと管理者のルート。
	Staff = Policy{RequiresAuth: true, AllowedRoles: []model.Role{model.RoleModerator, model.RoleAdmin}}
)

// Allows はロールが方針の許可対象に含まれるかを返す。許可対象が空の場合は常にtrue。
func (p Policy) Allows(role model.Role) bool {
	return len(p.AllowedRoles) == 0 || slices.Contains(p.AllowedRoles, role)
}

// CredentialSource は資格情報の受け渡し方法。デプロイ時にどちらか一方を選ぶ。
type CredentialSource string

const (
	// SourceHeader は Authorization: Bearer ヘッダーから読み取る。
	SourceHeader CredentialSource = "header"
	// SourceCookie はhttpOnly cookie token から読み取る。
	SourceCookie CredentialSource = "cookie"
)

// ParseCredentialSource は設定値を資格情報の受け渡し方法に変換する。
func ParseCredentialSource(s string) (CredentialSource, error) {
	switch CredentialSource(s) {
	case SourceHeader, SourceCookie:
		return CredentialSource(s), nil
	default:
		return "", fmt.Errorf("不明な資格情報モードです: %q", s)
	}
}

// RoleResolver は保存済みロールを参照する。
type RoleResolver interface {
	RoleOf(ctx context.Context, email string) (model.Role, error)
}

// Result は判定の詳細。
type Result struct {
	Decision Decision
	// Email は受け入れた場合の認証済みメールアドレス。
	Email string
	// Role はロールを参照した場合のロール。
	Role model.Role
}

// Gate はリクエストの受け入れ可否を判定する。
type Gate struct {
	secret string
	source CredentialSource
	roles  RoleResolver
}

// NewGate は新しいGateを生成する。
func NewGate(secret string, source CredentialSource, roles RoleResolver) *Gate {
	return &Gate{secret: secret, source: source, roles: roles}
}

// Source は資格情報の受け渡し方法を返す。
func (g *Gate) Source() CredentialSource {
	return g.source
}

// Credential はリクエストから資格情報を取り出す。無い場合は空文字を返す。
func (g *Gate) Credential(r *http.Request) string {
	if g.source == SourceCookie {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	return token
}

// Decide は資格情報と主張された本人から受け入れ可否を判定する。
// ロール参照に失敗した場合のみエラーを返す。
func (g *Gate) Decide(ctx context.Context, credential, claimed string, p Policy) (Result, error) {
	if !p.RequiresAuth {
		return Result{Decision: Admitted}, nil
	}

	email, err := middleware.VerifyJWT(g.secret, credential)
	if err != nil {
		return Result{Decision: Unauthenticated}, nil
	}
	if email != claimed {
		return Result{Decision: IdentityMismatch}, nil
	}
	if len(p.AllowedRoles) == 0 {
		return Result{Decision: Admitted, Email: email}, nil
	}

	role, err := g.roles.RoleOf(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Decision: Forbidden, Email: email}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("ロールの参照に失敗: %w", err)
	}
	if !p.Allows(role) {
		return Result{Decision: Forbidden, Email: email, Role: role}, nil
	}
	return Result{Decision: Admitted, Email: email, Role: role}, nil
}

// Require は方針に従ってリクエストを判定するGinミドルウェアを返す。
// 受け入れた場合は認証済みメールアドレスをコンテキストに設定する。
func (g *Gate) Require(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := g.Decide(c.Request.Context(), g.Credential(c.Request), c.Query(ClaimParam), p)
		if err != nil {
			logger.Errorf("アクセス判定に失敗: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "権限の確認に失敗しました"})
			return
		}
		if res.Decision != Admitted {
			logger.Debugf("アクセスを拒否しました: %s %s: %s", c.Request.Method, c.Request.URL.Path, res.Decision)
			c.AbortWithStatusJSON(res.Decision.Status(), gin.H{"error": res.Decision.message()})
			return
		}

		if res.Email != "" {
			middleware.SetEmail(c, res.Email)
		}
		c.Next()
	}
}
