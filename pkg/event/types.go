package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeReview はレビューエンティティを表す。
	AggregateTypeReview AggregateType = "Review"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeReviewCreated はレビューが投稿されたことを表す。
	TypeReviewCreated Type = "ReviewCreated"
	// TypeReviewDeleted はレビューが削除されたことを表す。
	TypeReviewDeleted Type = "ReviewDeleted"
	// TypeReviewRatingChanged はレビューの評価値が変更されたことを表す。
	TypeReviewRatingChanged Type = "ReviewRatingChanged"
)

// Event はレビューの変更を表す不変のイベントレコード。
// 奨学金ごとの評価集計はこのイベント列から増分的に導出される。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティ（レビュー）の識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// ReviewCreatedData はReviewCreatedイベントのデータ。
type ReviewCreatedData struct {
	// ScholarshipID はレビュー対象の奨学金ID。
	ScholarshipID string `json:"scholarship_id"`
	// Email はレビュー投稿者のメールアドレス。
	Email string `json:"email"`
	// Rating は投稿された評価値。
	Rating int `json:"rating"`
}

// ReviewDeletedData はReviewDeletedイベントのデータ。
type ReviewDeletedData struct {
	// ScholarshipID はレビュー対象の奨学金ID。
	ScholarshipID string `json:"scholarship_id"`
	// Email は削除を実行したユーザーのメールアドレス。
	Email string `json:"email"`
	// Rating は削除されたレビューの評価値。
	Rating int `json:"rating"`
}

// ReviewRatingChangedData はReviewRatingChangedイベントのデータ。
type ReviewRatingChangedData struct {
	// ScholarshipID はレビュー対象の奨学金ID。
	ScholarshipID string `json:"scholarship_id"`
	// Email は変更を実行したユーザーのメールアドレス。
	Email string `json:"email"`
	// OldRating は変更前の評価値。
	OldRating int `json:"old_rating"`
	// NewRating は変更後の評価値。
	NewRating int `json:"new_rating"`
}
