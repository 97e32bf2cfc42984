package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// issuer はトークンの発行者。
const issuer = "scholarhub"

// contextKeyEmail は認証済みメールアドレスをGinコンテキストに格納するキー。
const contextKeyEmail = "email"

// ErrInvalidCredential はトークンの検証に失敗したことを表す。
var ErrInvalidCredential = errors.New("トークンが無効です")

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Email はトークンが表明するユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateJWT はメールアドレスを埋め込んだHS256署名付きトークンを生成する。
func GenerateJWT(secret, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyJWT はトークンの署名と有効期限を検証し、埋め込まれたメールアドレスを返す。
// 状態を持たない純粋関数で、失敗時は常にErrInvalidCredentialをラップして返す。
func VerifyJWT(secret, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidCredential
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid || claims.Email == "" {
		return "", ErrInvalidCredential
	}
	return claims.Email, nil
}

// BearerToken はAuthorizationヘッダーの値からBearerトークンを取り出す。
func BearerToken(authHeader string) (string, bool) {
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	return tokenString, tokenString != ""
}

// SetEmail は認証済みメールアドレスをGinコンテキストに設定する。
func SetEmail(c *gin.Context, email string) {
	c.Set(contextKeyEmail, email)
}

// GetEmail はGinコンテキストから認証済みメールアドレスを取得する。
// アクセスゲートが事前に適用されている必要がある。
func GetEmail(c *gin.Context) string {
	v, _ := c.Get(contextKeyEmail)
	if email, ok := v.(string); ok {
		return email
	}
	return ""
}
