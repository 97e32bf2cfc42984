package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/access"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/logger"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// tokenRequest は資格情報発行リクエスト。
type tokenRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// handleIssueToken はメールアドレスを埋め込んだトークンを発行するハンドラを返す。
// headerモードではトークンを返し、cookieモードではhttpOnly cookieに設定する。
func (s *Server) handleIssueToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, req.Email, s.cfg.JWTTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			logger.Errorf("JWT生成エラー: %v", err)
			return
		}

		if s.gate.Source() == access.SourceHeader {
			c.JSON(http.StatusOK, gin.H{"token": token})
			return
		}
		s.setTokenCookie(c, token, int(s.cfg.JWTTTL.Seconds()))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleLogout はトークンのcookieを削除するハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.setTokenCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// setTokenCookie はトークンのcookieを設定する。Secure指定時はクロスサイト送信を許可する。
func (s *Server) setTokenCookie(c *gin.Context, value string, maxAge int) {
	if s.cfg.CookieSecure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteStrictMode)
	}
	c.SetCookie(access.CookieName, value, maxAge, "/", "", s.cfg.CookieSecure, true)
}

// authorizeOwner は認証済みユーザーが所有者か、モデレーター以上のロールを持つかを確認する。
// 許可しない場合はレスポンスを書き込んでfalseを返す。
func (s *Server) authorizeOwner(c *gin.Context, owner string) bool {
	email := middleware.GetEmail(c)
	if email != "" && email == owner {
		return true
	}

	role, err := s.store.RoleOf(c.Request.Context(), email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(c, err, "ユーザー")
		return false
	}
	if err == nil && access.Staff.Allows(role) {
		return true
	}
	forbidden(c)
	return false
}
