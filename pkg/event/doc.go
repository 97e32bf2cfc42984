// Package event はレビューの変更を表すイベントの語彙を提供する。
//
// レビューの投稿・削除・評価変更はイベントとして表現され、
// 評価集計（internal/rating）はこのイベントを順に適用して奨学金の評価を更新する。
package event
