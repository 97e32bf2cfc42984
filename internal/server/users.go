package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/model"
)

// userRequest はユーザー登録・更新リクエスト。ロールは受け付けない。
type userRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

func (r userRequest) toModel() model.User {
	return model.User{Email: r.Email, Name: r.Name, PhotoURL: r.PhotoURL}
}

// roleRequest はロール変更リクエスト。
type roleRequest struct {
	Role model.Role `json:"role" binding:"required,role"`
}

// handleCreateUser は未登録のユーザーをApplicantとして作成するハンドラを返す。
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		created, err := s.store.CreateUserIfAbsent(c.Request.Context(), req.toModel())
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		if !created {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "既に登録済みです"})
			return
		}

		u, err := s.store.GetUser(c.Request.Context(), req.Email)
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// handleUpsertUser はプロフィールを作成または更新するハンドラを返す。
func (s *Server) handleUpsertUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if err := s.store.UpsertUser(c.Request.Context(), req.toModel()); err != nil {
			fail(c, err, "ユーザー")
			return
		}
		u, err := s.store.GetUser(c.Request.Context(), req.Email)
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// handleGetUser はユーザーを取得するハンドラを返す。本人またはモデレーター以上のみ取得できる。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")
		if !s.authorizeOwner(c, email) {
			return
		}

		u, err := s.store.GetUser(c.Request.Context(), email)
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// handleListUsers はユーザー一覧を返すハンドラを返す。filterでロールを絞り込める。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := model.Role(c.Query("filter"))
		if role != "" && !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不明なロールです"})
			return
		}

		users, err := s.store.ListUsers(c.Request.Context(), role)
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// handleUpdateUserRole はユーザーのロールを変更するハンドラを返す。
func (s *Server) handleUpdateUserRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		email := c.Param("email")
		if err := s.store.UpdateUserRole(c.Request.Context(), email, req.Role); err != nil {
			fail(c, err, "ユーザー")
			return
		}
		u, err := s.store.GetUser(c.Request.Context(), email)
		if err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// handleDeleteUser はユーザーを削除するハンドラを返す。
func (s *Server) handleDeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.DeleteUser(c.Request.Context(), c.Param("email")); err != nil {
			fail(c, err, "ユーザー")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ユーザーを削除しました"})
	}
}
