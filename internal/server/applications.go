package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// applicationRequest は応募リクエスト。応募者のメールアドレスは認証済みの本人とする。
type applicationRequest struct {
	ScholarshipID string `json:"scholarshipId" binding:"required"`
	UserName      string `json:"userName"`
	Phone         string `json:"phone"`
	Photo         string `json:"photo"`
	Address       string `json:"address"`
	Gender        string `json:"gender"`
	Degree        string `json:"degree"`
	SSCResult     string `json:"sscResult"`
	HSCResult     string `json:"hscResult"`
	StudyGap      string `json:"studyGap"`
}

func (r applicationRequest) toModel(email string) model.Application {
	return model.Application{
		Email:         email,
		ScholarshipID: r.ScholarshipID,
		UserName:      r.UserName,
		Phone:         r.Phone,
		Photo:         r.Photo,
		Address:       r.Address,
		Gender:        r.Gender,
		Degree:        r.Degree,
		SSCResult:     r.SSCResult,
		HSCResult:     r.HSCResult,
		StudyGap:      r.StudyGap,
	}
}

// bindApplication はリクエストを解釈し、応募先の奨学金が存在することを確認する。
func (s *Server) bindApplication(c *gin.Context) (model.Application, bool) {
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return model.Application{}, false
	}
	if _, err := s.store.GetScholarship(c.Request.Context(), req.ScholarshipID); err != nil {
		fail(c, err, "奨学金")
		return model.Application{}, false
	}
	return req.toModel(middleware.GetEmail(c)), true
}

// handleCreateApplication は応募を作成するハンドラを返す。同じ奨学金への重複応募は409を返す。
func (s *Server) handleCreateApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, ok := s.bindApplication(c)
		if !ok {
			return
		}

		created, err := s.store.CreateApplication(c.Request.Context(), app)
		if err != nil {
			fail(c, err, "応募")
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// handleUpsertApplication は(email, scholarshipId)をキーに応募を作成または更新するハンドラを返す。
func (s *Server) handleUpsertApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, ok := s.bindApplication(c)
		if !ok {
			return
		}

		saved, err := s.store.UpsertApplication(c.Request.Context(), app)
		if err != nil {
			fail(c, err, "応募")
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

// handleListApplications は指定ユーザーの応募を奨学金の情報付きで返すハンドラを返す。
func (s *Server) handleListApplications() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")
		if !s.authorizeOwner(c, email) {
			return
		}

		apps, err := s.store.ListApplications(c.Request.Context(), model.Filter{Email: email})
		if err != nil {
			fail(c, err, "応募")
			return
		}
		views, err := s.withApplicationDetails(c.Request.Context(), apps)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// handleListAllApplications は全応募を奨学金の情報付きで返すハンドラを返す。
func (s *Server) handleListAllApplications() gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := s.store.ListApplications(c.Request.Context(), model.Filter{})
		if err != nil {
			fail(c, err, "応募")
			return
		}
		views, err := s.withApplicationDetails(c.Request.Context(), apps)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// loadOwnedApplication は応募を取得し、本人またはモデレーター以上であることを確認する。
func (s *Server) loadOwnedApplication(c *gin.Context) (model.Application, bool) {
	app, err := s.store.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "応募")
		return model.Application{}, false
	}
	if !s.authorizeOwner(c, app.Email) {
		return model.Application{}, false
	}
	return app, true
}

// handleUpdateApplication は応募者のフィールドを部分更新するハンドラを返す。
func (s *Server) handleUpdateApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, ok := s.loadOwnedApplication(c)
		if !ok {
			return
		}

		var patch model.ApplicationPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err)
			return
		}
		if err := s.store.UpdateApplication(c.Request.Context(), app.ID, patch); err != nil {
			fail(c, err, "応募")
			return
		}

		updated, err := s.store.GetApplication(c.Request.Context(), app.ID)
		if err != nil {
			fail(c, err, "応募")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// handleReviewApplication は審査状態とフィードバックを更新するハンドラを返す。
func (s *Server) handleReviewApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ApplicationReview
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		id := c.Param("id")
		if err := s.store.ReviewApplication(c.Request.Context(), id, req); err != nil {
			fail(c, err, "応募")
			return
		}
		updated, err := s.store.GetApplication(c.Request.Context(), id)
		if err != nil {
			fail(c, err, "応募")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// handleDeleteApplication は応募を削除するハンドラを返す。
func (s *Server) handleDeleteApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, ok := s.loadOwnedApplication(c)
		if !ok {
			return
		}

		if err := s.store.DeleteApplication(c.Request.Context(), app.ID); err != nil {
			fail(c, err, "応募")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "応募を削除しました"})
	}
}
