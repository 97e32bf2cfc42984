package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// totalCountHeader は検索条件に一致する総件数を返すレスポンスヘッダー。
const totalCountHeader = "X-Total-Count"

// scholarshipRequest は奨学金作成リクエスト。評価集計は受け付けない。
type scholarshipRequest struct {
	ScholarshipName        string    `json:"scholarshipName" binding:"required"`
	UniversityName         string    `json:"universityName" binding:"required"`
	UniversityImage        string    `json:"universityImage"`
	UniversityCountry      string    `json:"universityCountry"`
	UniversityCity         string    `json:"universityCity"`
	UniversityWorldRank    int       `json:"universityWorldRank" binding:"gte=0"`
	SubjectCategory        string    `json:"subjectCategory"`
	ScholarshipCategory    string    `json:"scholarshipCategory"`
	Degree                 string    `json:"degree"`
	TuitionFees            float64   `json:"tuitionFees" binding:"gte=0"`
	ApplicationFees        float64   `json:"applicationFees" binding:"gte=0"`
	ServiceCharge          float64   `json:"serviceCharge" binding:"gte=0"`
	ApplicationDeadline    string    `json:"applicationDeadline"`
	PostDate               time.Time `json:"scholarshipPostDate"`
	ScholarshipDescription string    `json:"scholarshipDescription"`
}

func (r scholarshipRequest) toModel(postedBy string) model.Scholarship {
	return model.Scholarship{
		ScholarshipName:        r.ScholarshipName,
		UniversityName:         r.UniversityName,
		UniversityImage:        r.UniversityImage,
		UniversityCountry:      r.UniversityCountry,
		UniversityCity:         r.UniversityCity,
		UniversityWorldRank:    r.UniversityWorldRank,
		SubjectCategory:        r.SubjectCategory,
		ScholarshipCategory:    r.ScholarshipCategory,
		Degree:                 r.Degree,
		TuitionFees:            r.TuitionFees,
		ApplicationFees:        r.ApplicationFees,
		ServiceCharge:          r.ServiceCharge,
		ApplicationDeadline:    r.ApplicationDeadline,
		PostDate:               r.PostDate,
		PostedUserEmail:        postedBy,
		ScholarshipDescription: r.ScholarshipDescription,
	}
}

// parsePage はページ番号を解釈する。未指定・不正・1未満の場合は1とする。
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// handleListScholarships は検索条件に一致する奨学金を1ページ分返すハンドラを返す。
func (s *Server) handleListScholarships() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := model.ScholarshipQuery{
			Search:   c.Query("search"),
			Page:     parsePage(c.Query("page")),
			PageSize: s.cfg.PageSize,
		}

		list, total, err := s.store.ListScholarships(c.Request.Context(), q)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.Header(totalCountHeader, strconv.FormatInt(total, 10))
		c.JSON(http.StatusOK, list)
	}
}

// handleTopScholarships は応募料の安い奨学金を返すハンドラを返す。
func (s *Server) handleTopScholarships() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.store.TopScholarships(c.Request.Context(), s.cfg.TopLimit)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// handleManageScholarships は管理画面用に全奨学金を返すハンドラを返す。
func (s *Server) handleManageScholarships() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, total, err := s.store.ListScholarships(c.Request.Context(), model.ScholarshipQuery{})
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.Header(totalCountHeader, strconv.FormatInt(total, 10))
		c.JSON(http.StatusOK, list)
	}
}

// handleGetScholarship は奨学金の詳細を返すハンドラを返す。
func (s *Server) handleGetScholarship() gin.HandlerFunc {
	return func(c *gin.Context) {
		sch, err := s.store.GetScholarship(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, sch)
	}
}

// handleCreateScholarship は奨学金を作成するハンドラを返す。
func (s *Server) handleCreateScholarship() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scholarshipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		created, err := s.store.CreateScholarship(c.Request.Context(), req.toModel(middleware.GetEmail(c)))
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// handleUpdateScholarship は奨学金の記述的なフィールドを部分更新するハンドラを返す。
func (s *Server) handleUpdateScholarship() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch model.ScholarshipPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err)
			return
		}

		id := c.Param("id")
		if err := s.store.UpdateScholarship(c.Request.Context(), id, patch); err != nil {
			fail(c, err, "奨学金")
			return
		}
		sch, err := s.store.GetScholarship(c.Request.Context(), id)
		if err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, sch)
	}
}

// handleDeleteScholarship は奨学金を削除するハンドラを返す。関連する応募とレビューは残す。
func (s *Server) handleDeleteScholarship() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.DeleteScholarship(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err, "奨学金")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "奨学金を削除しました"})
	}
}
