package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/store"
	"github.com/nao1215/scholarhub/pkg/event"
)

// fakeStore はテスト用のインメモリ評価ストア。AdjustRatingはAggregateの規則で集計を更新する。
type fakeStore struct {
	mu      sync.Mutex
	aggs    map[string]Aggregate
	reviews []model.Review
	failErr error
}

func newFakeStore(ids ...string) *fakeStore {
	f := &fakeStore{aggs: make(map[string]Aggregate)}
	for _, id := range ids {
		f.aggs[id] = Aggregate{}
	}
	return f
}

func (f *fakeStore) AdjustRating(_ context.Context, id string, sumDelta float64, countDelta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	a, ok := f.aggs[id]
	if !ok {
		return store.ErrNotFound
	}
	switch countDelta {
	case 1:
		f.aggs[id] = a.Add(sumDelta)
	case -1:
		f.aggs[id] = a.Remove(-sumDelta)
	case 0:
		f.aggs[id] = a.Replace(0, sumDelta)
	default:
		return fmt.Errorf("想定外の件数の増分: %d", countDelta)
	}
	return nil
}

func (f *fakeStore) SetRating(_ context.Context, id string, sum float64, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.aggs[id]; !ok {
		return store.ErrNotFound
	}
	f.aggs[id] = Aggregate{Sum: sum, Count: count}
	return nil
}

func (f *fakeStore) ScholarshipIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.aggs))
	for id := range f.aggs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ListReviews(_ context.Context, flt model.Filter) ([]model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.Review
	for _, r := range f.reviews {
		if flt.ScholarshipID == "" || r.ScholarshipID == flt.ScholarshipID {
			list = append(list, r)
		}
	}
	return list, nil
}

func (f *fakeStore) get(id string) Aggregate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aggs[id]
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	var a Aggregate
	if a.Mean() != 0 {
		t.Errorf("0件の平均: got %v, want 0", a.Mean())
	}
	a = a.Add(4).Add(3)
	if a.Mean() != 3.5 {
		t.Errorf("平均: got %v, want 3.5", a.Mean())
	}
	a = a.Replace(3, 5)
	if a.Mean() != 4.5 || a.Count != 2 {
		t.Errorf("変更後: got %+v", a)
	}
	a = a.Remove(4).Remove(5)
	if a != (Aggregate{}) {
		t.Errorf("全件削除後: got %+v, want ゼロ状態", a)
	}
	if got := (Aggregate{}).Remove(3); got != (Aggregate{}) {
		t.Errorf("0件からの削除: got %+v", got)
	}
}

func TestAggregator(t *testing.T) {
	t.Parallel()

	t.Run("投稿と削除で平均と件数が更新される", func(t *testing.T) {
		t.Parallel()
		fs := newFakeStore("sch-1")
		agg := NewAggregator(fs)
		ctx := t.Context()

		if err := agg.OnReviewCreated(ctx, "sch-1", 4); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if err := agg.OnReviewCreated(ctx, "sch-1", 3); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := fs.get("sch-1"); got.Mean() != 3.5 || got.Count != 2 {
			t.Errorf("2件投稿後: got mean=%v count=%d, want 3.5/2", got.Mean(), got.Count)
		}

		if err := agg.OnReviewDeleted(ctx, "sch-1", 4); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := fs.get("sch-1"); got.Mean() != 3 || got.Count != 1 {
			t.Errorf("1件削除後: got mean=%v count=%d, want 3/1", got.Mean(), got.Count)
		}

		if err := agg.OnReviewDeleted(ctx, "sch-1", 3); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := fs.get("sch-1"); got != (Aggregate{}) {
			t.Errorf("全件削除後: got %+v, want ゼロ状態", got)
		}
	})

	t.Run("評価値の変更は件数を変えない", func(t *testing.T) {
		t.Parallel()
		fs := newFakeStore("sch-1")
		agg := NewAggregator(fs)

		_ = agg.OnReviewCreated(t.Context(), "sch-1", 2)
		if err := agg.OnReviewRatingChanged(t.Context(), "sch-1", 2, 5); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := fs.get("sch-1"); got.Mean() != 5 || got.Count != 1 {
			t.Errorf("変更後: got mean=%v count=%d, want 5/1", got.Mean(), got.Count)
		}
	})

	t.Run("存在しない奨学金はスキップする", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(newFakeStore())

		if err := agg.OnReviewCreated(t.Context(), "missing", 5); err != nil {
			t.Errorf("存在しない奨学金: got %v, want nil", err)
		}
	})

	t.Run("ストアのエラーは呼び出し元に返す", func(t *testing.T) {
		t.Parallel()
		fs := newFakeStore("sch-1")
		fs.failErr = errors.New("connection reset")
		agg := NewAggregator(fs)

		if err := agg.OnReviewCreated(t.Context(), "sch-1", 5); err == nil {
			t.Error("エラーが返されませんでした")
		}
	})

	t.Run("同時に投稿されても更新が失われない", func(t *testing.T) {
		t.Parallel()
		fs := newFakeStore("sch-1")
		agg := NewAggregator(fs)

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = agg.OnReviewCreated(context.Background(), "sch-1", float64(i%5+1))
			}()
		}
		wg.Wait()

		if got := fs.get("sch-1"); got.Count != 50 || got.Mean() != 3 {
			t.Errorf("並行投稿後: got mean=%v count=%d, want 3/50", got.Mean(), got.Count)
		}
	})
}

func TestAggregatorApply(t *testing.T) {
	t.Parallel()

	fs := newFakeStore("sch-1")
	agg := NewAggregator(fs)

	events := []struct {
		eventType event.Type
		data      any
	}{
		{event.TypeReviewCreated, event.ReviewCreatedData{ScholarshipID: "sch-1", Email: "a@example.com", Rating: 4}},
		{event.TypeReviewCreated, event.ReviewCreatedData{ScholarshipID: "sch-1", Email: "b@example.com", Rating: 2}},
		{event.TypeReviewRatingChanged, event.ReviewRatingChangedData{ScholarshipID: "sch-1", OldRating: 2, NewRating: 4}},
		{event.TypeReviewDeleted, event.ReviewDeletedData{ScholarshipID: "sch-1", Email: "a@example.com", Rating: 4}},
	}
	for _, e := range events {
		ev, err := event.New("review-1", event.AggregateTypeReview, e.eventType, e.data)
		if err != nil {
			t.Fatalf("イベント生成に失敗: %v", err)
		}
		if err := agg.Apply(t.Context(), ev); err != nil {
			t.Fatalf("イベント適用に失敗: %v", err)
		}
	}

	if got := fs.get("sch-1"); got.Mean() != 4 || got.Count != 1 {
		t.Errorf("適用後: got mean=%v count=%d, want 4/1", got.Mean(), got.Count)
	}

	other, err := event.New("x", "Other", event.TypeReviewCreated, event.ReviewCreatedData{ScholarshipID: "sch-1", Rating: 5})
	if err != nil {
		t.Fatalf("イベント生成に失敗: %v", err)
	}
	if err := agg.Apply(t.Context(), other); err != nil {
		t.Errorf("レビュー以外のイベント: got %v, want nil", err)
	}
	if got := fs.get("sch-1"); got.Count != 1 {
		t.Errorf("レビュー以外のイベントが集計に反映されています: %+v", got)
	}
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	fs := newFakeStore("sch-1", "sch-2")
	fs.reviews = []model.Review{
		{ScholarshipID: "sch-1", Rating: 5},
		{ScholarshipID: "sch-1", Rating: 2},
		{ScholarshipID: "sch-2", Rating: 4},
	}
	// 不整合な集計を用意する
	fs.aggs["sch-1"] = Aggregate{Sum: 100, Count: 9}
	agg := NewAggregator(fs)

	n, err := agg.RebuildAll(t.Context())
	if err != nil {
		t.Fatalf("再構築に失敗: %v", err)
	}
	if n != 2 {
		t.Errorf("処理件数: got %d, want 2", n)
	}
	if got := fs.get("sch-1"); got.Mean() != 3.5 || got.Count != 2 {
		t.Errorf("sch-1: got mean=%v count=%d, want 3.5/2", got.Mean(), got.Count)
	}
	if got := fs.get("sch-2"); got.Mean() != 4 || got.Count != 1 {
		t.Errorf("sch-2: got mean=%v count=%d, want 4/1", got.Mean(), got.Count)
	}
}

// TestAggregatorRandomSequence は投稿と削除のランダムな列に対して、
// 増分更新の結果がレビュー集合から再計算した値と一致することを検証する。
func TestAggregatorRandomSequence(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	fs := newFakeStore("sch-1")
	agg := NewAggregator(fs)

	var live []int
	for range 1000 {
		if len(live) == 0 || rng.IntN(3) > 0 {
			r := rng.IntN(5) + 1
			live = append(live, r)
			if err := agg.OnReviewCreated(t.Context(), "sch-1", float64(r)); err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
		} else {
			i := rng.IntN(len(live))
			r := live[i]
			live = append(live[:i], live[i+1:]...)
			if err := agg.OnReviewDeleted(t.Context(), "sch-1", float64(r)); err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
		}

		got := fs.get("sch-1")
		if got.Count != int64(len(live)) {
			t.Fatalf("件数: got %d, want %d", got.Count, len(live))
		}
		if len(live) == 0 {
			if got.Mean() != 0 {
				t.Fatalf("0件の平均: got %v, want 0", got.Mean())
			}
			continue
		}

		lo, hi, sum := 5, 1, 0
		for _, r := range live {
			lo = min(lo, r)
			hi = max(hi, r)
			sum += r
		}
		mean := got.Mean()
		if mean < float64(lo) || mean > float64(hi) {
			t.Fatalf("平均 %v が範囲 [%d, %d] の外です", mean, lo, hi)
		}
		if want := float64(sum) / float64(len(live)); math.Abs(mean-want) > 1e-9 {
			t.Fatalf("平均: got %v, want %v", mean, want)
		}
	}
}
