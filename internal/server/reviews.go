package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/saga"
	"github.com/nao1215/scholarhub/pkg/event"
	"github.com/nao1215/scholarhub/pkg/logger"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// reviewRequest はレビュー投稿リクエスト。投稿者のメールアドレスは認証済みの本人とする。
type reviewRequest struct {
	ScholarshipID string    `json:"scholarshipId" binding:"required"`
	UserName      string    `json:"userName"`
	UserImage     string    `json:"userImage"`
	Rating        int       `json:"rating" binding:"required,min=1,max=5"`
	Comment       string    `json:"comment"`
	ReviewDate    time.Time `json:"reviewDate"`
}

// applyReviewEvent はレビューイベントを生成して評価集計に反映する。反映したイベントは監査ログに出力する。
func (s *Server) applyReviewEvent(ctx context.Context, reviewID string, eventType event.Type, data any) error {
	ev, err := event.New(reviewID, event.AggregateTypeReview, eventType, data)
	if err != nil {
		return err
	}
	if err := s.ratings.Apply(ctx, ev); err != nil {
		return fmt.Errorf("%sの評価集計への反映に失敗: %w", eventType, err)
	}
	logger.Infof("[Event] %s: event_id=%s, review_id=%s, data=%s", ev.EventType, ev.ID, ev.AggregateID, ev.Data)
	return nil
}

// handleCreateReview はレビューを投稿し、奨学金の評価集計に反映するハンドラを返す。
// 集計の更新に失敗した場合は作成したレビューを削除する。
func (s *Server) handleCreateReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx := c.Request.Context()
		if _, err := s.store.GetScholarship(ctx, req.ScholarshipID); err != nil {
			fail(c, err, "奨学金")
			return
		}

		email := middleware.GetEmail(c)
		var created model.Review
		err := saga.New("create_review",
			saga.Step{
				Name: "insert_review",
				Action: func(ctx context.Context) error {
					var err error
					created, err = s.store.CreateReview(ctx, model.Review{
						Email:         email,
						ScholarshipID: req.ScholarshipID,
						UserName:      req.UserName,
						UserImage:     req.UserImage,
						Rating:        req.Rating,
						Comment:       req.Comment,
						ReviewDate:    req.ReviewDate,
					})
					return err
				},
				Compensate: func(ctx context.Context) error {
					_, err := s.store.DeleteReview(ctx, created.ID)
					return err
				},
			},
			saga.Step{
				Name: "apply_rating",
				Action: func(ctx context.Context) error {
					return s.applyReviewEvent(ctx, created.ID, event.TypeReviewCreated, event.ReviewCreatedData{
						ScholarshipID: created.ScholarshipID,
						Email:         email,
						Rating:        created.Rating,
					})
				},
			},
		).Run(ctx)
		if err != nil {
			fail(c, err, "レビュー")
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// handleListReviews は本人のレビューを奨学金の情報付きで返すハンドラを返す。
func (s *Server) handleListReviews() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respondReviews(c, model.Filter{Email: middleware.GetEmail(c)})
	}
}

// handleListAllReviews は全レビューを奨学金の情報付きで返すハンドラを返す。
func (s *Server) handleListAllReviews() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respondReviews(c, model.Filter{})
	}
}

// handleListScholarshipReviews は奨学金に対するレビューを返すハンドラを返す。
func (s *Server) handleListScholarshipReviews() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respondReviews(c, model.Filter{ScholarshipID: c.Param("id")})
	}
}

func (s *Server) respondReviews(c *gin.Context, f model.Filter) {
	reviews, err := s.store.ListReviews(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "レビュー")
		return
	}
	views, err := s.withReviewDetails(c.Request.Context(), reviews)
	if err != nil {
		fail(c, err, "奨学金")
		return
	}
	c.JSON(http.StatusOK, views)
}

// loadOwnedReview はレビューを取得し、投稿者本人またはモデレーター以上であることを確認する。
// 取得した評価値は集計の差分計算に使わない。差分はストアの更新・削除が返すレビューから求める。
func (s *Server) loadOwnedReview(c *gin.Context) (model.Review, bool) {
	r, err := s.store.GetReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "レビュー")
		return model.Review{}, false
	}
	if !s.authorizeOwner(c, r.Email) {
		return model.Review{}, false
	}
	return r, true
}

// handleUpdateReview はレビューを部分更新するハンドラを返す。
// 評価値が変わった場合は更新直前の評価値との差分を集計に反映し、
// 失敗した場合はレビューを更新前の内容に戻す。
func (s *Server) handleUpdateReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, ok := s.loadOwnedReview(c)
		if !ok {
			return
		}
		var patch model.ReviewPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err)
			return
		}

		email := middleware.GetEmail(c)
		var prev model.Review
		err := saga.New("update_review",
			saga.Step{
				Name: "update_review",
				Action: func(ctx context.Context) error {
					var err error
					prev, err = s.store.UpdateReview(ctx, owned.ID, patch)
					return err
				},
				Compensate: func(ctx context.Context) error {
					return s.revertReview(ctx, prev, patch)
				},
			},
			saga.Step{
				Name: "apply_rating",
				Action: func(ctx context.Context) error {
					if patch.Rating == nil || *patch.Rating == prev.Rating {
						return nil
					}
					return s.applyReviewEvent(ctx, prev.ID, event.TypeReviewRatingChanged, event.ReviewRatingChangedData{
						ScholarshipID: prev.ScholarshipID,
						Email:         email,
						OldRating:     prev.Rating,
						NewRating:     *patch.Rating,
					})
				},
			},
		).Run(c.Request.Context())
		if err != nil {
			fail(c, err, "レビュー")
			return
		}

		updated, err := s.store.GetReview(c.Request.Context(), owned.ID)
		if err != nil {
			fail(c, err, "レビュー")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// revertReview はレビューを更新前の評価値とコメントに戻す。
// 戻す前に別の更新で評価値が変わっていた場合、集計との整合はrebuild-ratingsで修復する必要があるためエラーを返す。
func (s *Server) revertReview(ctx context.Context, prev model.Review, applied model.ReviewPatch) error {
	overwritten, err := s.store.UpdateReview(ctx, prev.ID, model.ReviewPatch{Rating: &prev.Rating, Comment: &prev.Comment})
	if err != nil {
		return err
	}
	if applied.Rating != nil && overwritten.Rating != *applied.Rating {
		return fmt.Errorf("レビュー %s は補償前に評価値 %d へ更新されていました", prev.ID, overwritten.Rating)
	}
	return nil
}

// handleDeleteReview はレビューを削除し、削除したレビューの評価値を集計から除くハンドラを返す。
// 集計の更新に失敗した場合は削除したレビューを復元する。
func (s *Server) handleDeleteReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, ok := s.loadOwnedReview(c)
		if !ok {
			return
		}

		var removed model.Review
		err := saga.New("delete_review",
			saga.Step{
				Name: "remove_review",
				Action: func(ctx context.Context) error {
					var err error
					removed, err = s.store.DeleteReview(ctx, owned.ID)
					return err
				},
				Compensate: func(ctx context.Context) error {
					return s.store.RestoreReview(ctx, removed)
				},
			},
			saga.Step{
				Name: "apply_rating",
				Action: func(ctx context.Context) error {
					return s.applyReviewEvent(ctx, removed.ID, event.TypeReviewDeleted, event.ReviewDeletedData{
						ScholarshipID: removed.ScholarshipID,
						Email:         middleware.GetEmail(c),
						Rating:        removed.Rating,
					})
				},
			},
		).Run(c.Request.Context())
		if err != nil {
			fail(c, err, "レビュー")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "レビューを削除しました"})
	}
}
