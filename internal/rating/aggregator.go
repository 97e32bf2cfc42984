// Package rating は奨学金ごとの評価集計（平均評価とレビュー件数）を維持する。
//
// 集計は合計と件数としてストアに保存され、レビューの投稿・削除・評価変更のたびに
// ストアの原子的な加算で増分更新される。読み出し側は合計を件数で割って平均を得る。
// 読み取り→計算→書き込みを行わないため、同時に投稿されても更新が失われない。
package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/event"
	"github.com/nao1215/scholarhub/pkg/logger"
)

// Store は評価集計が必要とするストア操作。
type Store interface {
	AdjustRating(ctx context.Context, scholarshipID string, sumDelta float64, countDelta int64) error
	SetRating(ctx context.Context, scholarshipID string, sum float64, count int64) error
	ScholarshipIDs(ctx context.Context) ([]string, error)
	ListReviews(ctx context.Context, f model.Filter) ([]model.Review, error)
}

// Aggregator はレビューの変更を奨学金の評価集計に反映する。
type Aggregator struct {
	store Store
}

// NewAggregator は新しいAggregatorを生成する。
func NewAggregator(s Store) *Aggregator {
	return &Aggregator{store: s}
}

// OnReviewCreated はレビューの投稿を集計に反映する。
func (a *Aggregator) OnReviewCreated(ctx context.Context, scholarshipID string, r float64) error {
	return a.adjust(ctx, scholarshipID, r, 1)
}

// OnReviewDeleted はレビューの削除を集計に反映する。
// 最後の1件が削除された場合、集計はゼロ状態（平均0、件数0）になる。
func (a *Aggregator) OnReviewDeleted(ctx context.Context, scholarshipID string, r float64) error {
	return a.adjust(ctx, scholarshipID, -r, -1)
}

// OnReviewRatingChanged はレビューの評価値の変更を集計に反映する。件数は変わらない。
func (a *Aggregator) OnReviewRatingChanged(ctx context.Context, scholarshipID string, old, updated float64) error {
	if old == updated {
		return nil
	}
	return a.adjust(ctx, scholarshipID, updated-old, 0)
}

// adjust はストアの原子的な加算で集計を更新する。
// 奨学金が存在しない場合は孤立したレビューとしてログに記録し、何もしない。
func (a *Aggregator) adjust(ctx context.Context, scholarshipID string, sumDelta float64, countDelta int64) error {
	err := a.store.AdjustRating(ctx, scholarshipID, sumDelta, countDelta)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		logger.Warningf("評価集計をスキップしました: 奨学金 %s が存在しません", scholarshipID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("奨学金 %s の評価集計の更新に失敗: %w", scholarshipID, err)
	}
	return nil
}

// Apply はレビューイベントを1件集計に反映する。レビュー以外のイベントは無視する。
func (a *Aggregator) Apply(ctx context.Context, ev *event.Event) error {
	if ev.AggregateType != event.AggregateTypeReview {
		return nil
	}

	switch ev.EventType {
	case event.TypeReviewCreated:
		data, err := event.DecodeData[event.ReviewCreatedData](ev)
		if err != nil {
			return err
		}
		return a.OnReviewCreated(ctx, data.ScholarshipID, float64(data.Rating))
	case event.TypeReviewDeleted:
		data, err := event.DecodeData[event.ReviewDeletedData](ev)
		if err != nil {
			return err
		}
		return a.OnReviewDeleted(ctx, data.ScholarshipID, float64(data.Rating))
	case event.TypeReviewRatingChanged:
		data, err := event.DecodeData[event.ReviewRatingChangedData](ev)
		if err != nil {
			return err
		}
		return a.OnReviewRatingChanged(ctx, data.ScholarshipID, float64(data.OldRating), float64(data.NewRating))
	default:
		return nil
	}
}

// Rebuild は奨学金1件の集計をレビューコレクションから再計算して上書きする。
// 集計とレビューの不整合を修復する際に使用する。
func (a *Aggregator) Rebuild(ctx context.Context, scholarshipID string) (Aggregate, error) {
	reviews, err := a.store.ListReviews(ctx, model.Filter{ScholarshipID: scholarshipID})
	if err != nil {
		return Aggregate{}, fmt.Errorf("奨学金 %s のレビュー取得に失敗: %w", scholarshipID, err)
	}

	var agg Aggregate
	for _, r := range reviews {
		agg = agg.Add(float64(r.Rating))
	}

	if err := a.store.SetRating(ctx, scholarshipID, agg.Sum, agg.Count); err != nil {
		return Aggregate{}, fmt.Errorf("奨学金 %s の評価集計の上書きに失敗: %w", scholarshipID, err)
	}
	return agg, nil
}

// RebuildAll は全奨学金の集計を再計算する。処理した奨学金の件数を返す。
func (a *Aggregator) RebuildAll(ctx context.Context) (int, error) {
	ids, err := a.store.ScholarshipIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("奨学金IDの取得に失敗: %w", err)
	}

	for i, id := range ids {
		agg, err := a.Rebuild(ctx, id)
		if err != nil {
			return i, err
		}
		logger.Debugf("評価集計を再構築しました: id=%s, count=%d, rating=%.2f", id, agg.Count, agg.Mean())
	}
	return len(ids), nil
}
