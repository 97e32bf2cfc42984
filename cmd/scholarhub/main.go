// 奨学金応募プラットフォームのエントリポイント。
// serve でHTTP APIを起動し、grant-role と rebuild-ratings で運用作業を行う。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scholarhub/internal/config"
	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/payment"
	"github.com/nao1215/scholarhub/internal/rating"
	"github.com/nao1215/scholarhub/internal/server"
	"github.com/nao1215/scholarhub/internal/store"
	mongostore "github.com/nao1215/scholarhub/internal/store/mongo"
	"github.com/nao1215/scholarhub/internal/store/sqlite"
	"github.com/nao1215/scholarhub/pkg/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "scholarhub",
		Short:        "奨学金応募プラットフォームのAPIサーバー",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newGrantRoleCmd(), newRebuildRatingsCmd())
	return rootCmd
}

// setup は設定を読み込み、ロガーを初期化してストアを開く。
func setup(ctx context.Context) (config.Config, store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger.Init(cfg.LogLevel)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, st, nil
}

// openStore は設定されたドライバーでストアを開く。
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		logger.Infof("MongoDBに接続します: database=%s", cfg.MongoDatabase)
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		logger.Infof("SQLiteを開きます: path=%s", cfg.SQLitePath)
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func closeStore(st store.Store) {
	if err := st.Close(context.Background()); err != nil {
		logger.Errorf("ストアのクローズに失敗: %v", err)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTP APIサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, st, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStore(st)

			srv, err := server.New(cfg, st, payment.New(cfg.StripeSecretKey))
			if err != nil {
				return fmt.Errorf("サーバーの初期化に失敗: %w", err)
			}
			return srv.Run(ctx)
		},
	}
}

func newGrantRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-role <email> <role>",
		Short: "ユーザーのロールを変更する (Applicant, Moderator, Admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, role := args[0], model.Role(args[1])
			if !role.Valid() {
				return fmt.Errorf("不明なロールです: %s", role)
			}

			_, st, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.UpdateUserRole(cmd.Context(), email, role); err != nil {
				return fmt.Errorf("ロールの変更に失敗: %w", err)
			}
			logger.Infof("ロールを変更しました: email=%s role=%s", email, role)
			return nil
		},
	}
}

func newRebuildRatingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-ratings",
		Short: "全レビューから奨学金の評価集計を再計算する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(st)

			n, err := rating.NewAggregator(st).RebuildAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("評価集計の再計算に失敗: %w", err)
			}
			logger.Infof("評価集計を再計算しました: %d件", n)
			return nil
		},
	}
}
