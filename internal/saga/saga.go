// Package saga はストアへの書き込みと評価集計の更新のように、
// 複数のステップからなる処理を順に実行する。
// いずれかのステップが失敗した場合は、完了済みのステップの補償アクションを逆順に実行する。
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/scholarhub/pkg/logger"
)

// Step はSagaの1ステップ。Compensate がnilのステップは補償しない。
type Step struct {
	// Name はログに使うステップ名。
	Name string
	// Action はステップの本処理。
	Action func(ctx context.Context) error
	// Compensate はAction成功後に後続が失敗した場合の取り消し処理。
	Compensate func(ctx context.Context) error
}

// Saga は名前付きのステップ列。
type Saga struct {
	name  string
	steps []Step
}

// New は新しいSagaを生成する。
func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps}
}

// Run はステップを順に実行する。
// 失敗した場合は完了済みステップの補償アクションを逆順に実行し、失敗したステップのエラーを返す。
// 補償アクションはctxがキャンセルされていても実行する。
// 補償に失敗した場合はそのエラーも結合して返す。
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			logger.Warningf("[Saga] %s: ステップ %s が失敗: %v", s.name, step.Name, err)
			if cerr := s.compensate(context.WithoutCancel(ctx), s.steps[:i]); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
	}
	return nil
}

// compensate は完了済みステップを逆順に取り消す。
func (s *Saga) compensate(ctx context.Context, done []Step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		logger.Warningf("[Saga] 補償アクション開始: saga=%s, step=%s", s.name, step.Name)
		if err := step.Compensate(ctx); err != nil {
			logger.Errorf("[Saga] 補償アクションに失敗: saga=%s, step=%s: %v", s.name, step.Name, err)
			errs = append(errs, fmt.Errorf("%sの補償に失敗: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
