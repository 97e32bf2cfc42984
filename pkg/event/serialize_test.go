package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ReviewCreatedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := ReviewCreatedData{
			ScholarshipID: "sch-1",
			Email:         "alice@example.com",
			Rating:        4,
		}

		before := time.Now().UTC()
		ev, err := New("review-1", AggregateTypeReview, TypeReviewCreated, data)
		after := time.Now().UTC()
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.AggregateID != "review-1" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "review-1")
		}
		if ev.AggregateType != AggregateTypeReview {
			t.Errorf("AggregateType = %q, want %q", ev.AggregateType, AggregateTypeReview)
		}
		if ev.EventType != TypeReviewCreated {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeReviewCreated)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded ReviewCreatedData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded != data {
			t.Errorf("Data = %+v, want %+v", decoded, data)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		data := ReviewDeletedData{ScholarshipID: "sch-1", Rating: 3}
		ev1, err := New("review-1", AggregateTypeReview, TypeReviewDeleted, data)
		if err != nil {
			t.Fatalf("1回目のNew()でエラーが発生: %v", err)
		}
		ev2, err := New("review-1", AggregateTypeReview, TypeReviewDeleted, data)
		if err != nil {
			t.Fatalf("2回目のNew()でエラーが発生: %v", err)
		}
		if ev1.ID == ev2.ID {
			t.Errorf("IDが重複: %q", ev1.ID)
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("review-1", AggregateTypeReview, TypeReviewCreated, make(chan int)); err == nil {
			t.Error("チャネルのシリアライズでエラーが返らなかった")
		}
	})
}

// TestDecodeData はDecodeData関数を検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("評価変更イベントのデータを復元できること", func(t *testing.T) {
		t.Parallel()

		ev, err := New("review-9", AggregateTypeReview, TypeReviewRatingChanged, ReviewRatingChangedData{
			ScholarshipID: "sch-2",
			OldRating:     2,
			NewRating:     5,
		})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		data, err := DecodeData[ReviewRatingChangedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if data.ScholarshipID != "sch-2" || data.OldRating != 2 || data.NewRating != 5 {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{"rating":`)}
		if _, err := DecodeData[ReviewCreatedData](ev); err == nil {
			t.Error("不正なJSONでエラーが返らなかった")
		}
	})
}
