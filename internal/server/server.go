// Package server は奨学金応募プラットフォームのHTTP APIを提供する。
//
// すべてのルートはsetupRoutesで静的に宣言されたaccess.Policyを持ち、
// アクセスゲートを通過したリクエストのみがハンドラに到達する。
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/scholarhub/internal/access"
	"github.com/nao1215/scholarhub/internal/config"
	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/payment"
	"github.com/nao1215/scholarhub/internal/rating"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/logger"
	"github.com/nao1215/scholarhub/pkg/middleware"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "scholarhub"

// Server は奨学金応募プラットフォームのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はアプリケーション設定。
	cfg config.Config
	// store はドキュメントストア。
	store store.Store
	// gate はルートごとの受け入れ可否を判定する。
	gate *access.Gate
	// ratings はレビューの変更を奨学金の評価集計に反映する。
	ratings *rating.Aggregator
	// payments は支払いインテントを作成する。
	payments payment.Processor
}

// New は新しいサーバーを生成する。ストアは呼び出し元が開いて渡し、閉じる責任も呼び出し元が持つ。
func New(cfg config.Config, st store.Store, payments payment.Processor) (*Server, error) {
	source, err := access.ParseCredentialSource(cfg.CredentialMode)
	if err != nil {
		return nil, err
	}
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("バリデーションルールの登録に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLog())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:   router,
		cfg:      cfg,
		store:    st,
		gate:     access.NewGate(cfg.JWTSecret, source, st),
		ratings:  rating.NewAggregator(st),
		payments: payments,
	}
	s.setupRoutes()
	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
// キャンセル後は処理中のリクエストの完了をShutdownTimeoutまで待ってから停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTPサーバーを起動しました: port=%s", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	public := s.gate.Require(access.Public)
	authenticated := s.gate.Require(access.Authenticated)
	adminOnly := s.gate.Require(access.AdminOnly)
	staff := s.gate.Require(access.Staff)

	// 資格情報
	s.router.POST("/jwt", public, s.handleIssueToken())
	s.router.POST("/logout", public, s.handleLogout())

	// ユーザー
	users := s.router.Group("/users")
	{
		users.POST("", public, s.handleCreateUser())
		users.PUT("", public, s.handleUpsertUser())
		users.GET("/:email", authenticated, s.handleGetUser())
		users.GET("/all/admin", adminOnly, s.handleListUsers())
		users.PATCH("/admin/role/:email", adminOnly, s.handleUpdateUserRole())
		users.DELETE("/admin/delete/:email", adminOnly, s.handleDeleteUser())
	}

	// 奨学金
	scholarship := s.router.Group("/scholarship")
	{
		scholarship.GET("", public, s.handleListScholarships())
		scholarship.GET("/topScholarship", public, s.handleTopScholarships())
		scholarship.GET("/manage", staff, s.handleManageScholarships())
		scholarship.GET("/details/:id", authenticated, s.handleGetScholarship())
		scholarship.PATCH("/:id", staff, s.handleUpdateScholarship())
		scholarship.DELETE("/:id", staff, s.handleDeleteScholarship())
	}
	s.router.POST("/scholarships", staff, s.handleCreateScholarship())

	// 応募
	applied := s.router.Group("/applyed")
	{
		applied.POST("", authenticated, s.handleCreateApplication())
		applied.PUT("", authenticated, s.handleUpsertApplication())
		applied.GET("", staff, s.handleListAllApplications())
		applied.GET("/allApply/add", staff, s.handleListAllApplications())
		applied.GET("/:email", authenticated, s.handleListApplications())
		applied.PATCH("/:id", authenticated, s.handleUpdateApplication())
		applied.PATCH("/status/:id", staff, s.handleReviewApplication())
		applied.DELETE("/:id", authenticated, s.handleDeleteApplication())
	}

	// 決済
	s.router.POST("/create-payment-intent", authenticated, s.handleCreatePaymentIntent())

	// レビュー
	reviews := s.router.Group("/reviews")
	{
		reviews.POST("", authenticated, s.handleCreateReview())
		reviews.GET("", authenticated, s.handleListReviews())
		reviews.GET("/all", staff, s.handleListAllReviews())
		reviews.GET("/details/:id", authenticated, s.handleListScholarshipReviews())
		reviews.PATCH("/:id", authenticated, s.handleUpdateReview())
		reviews.DELETE("/:id", authenticated, s.handleDeleteReview())
	}

	// ヘルスチェック
	s.router.GET("/health", public, s.handleHealth())
}

// handleHealth はストアへの疎通を確認するヘルスチェックハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			logger.Errorf("ストアへの疎通確認に失敗: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}

var registerOnce = sync.OnceValue(func() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("Ginのバリデーターがvalidator/v10ではありません")
	}
	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("appstatus", func(fl validator.FieldLevel) bool {
		return model.ApplicationStatus(fl.Field().String()).Valid()
	})
})

// registerValidators はロールと審査状態のバインディングルールをGinのバリデーターに登録する。
func registerValidators() error {
	return registerOnce()
}
