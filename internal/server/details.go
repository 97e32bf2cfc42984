package server

import (
	"context"

	"github.com/nao1215/scholarhub/internal/model"
)

// applicationView は奨学金のスナップショットを結合した応募。
type applicationView struct {
	model.Application
	ScholarshipDetails []model.ScholarshipSummary `json:"scholarshipDetails"`
}

// reviewView は奨学金のスナップショットを結合したレビュー。
type reviewView struct {
	model.Review
	ScholarshipDetails []model.ScholarshipSummary `json:"scholarshipDetails"`
}

// scholarshipsFor は参照されている奨学金をまとめて取得する。
func (s *Server) scholarshipsFor(ctx context.Context, ids []string) (map[string]model.Scholarship, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.store.GetScholarshipsByIDs(ctx, unique)
}

// summaries は奨学金が存在すれば1件、削除済みなら空のスナップショット一覧を返す。
func summaries(found map[string]model.Scholarship, id string) []model.ScholarshipSummary {
	sch, ok := found[id]
	if !ok {
		return []model.ScholarshipSummary{}
	}
	return []model.ScholarshipSummary{sch.Summary()}
}

// withApplicationDetails は応募一覧に奨学金のスナップショットを結合する。
func (s *Server) withApplicationDetails(ctx context.Context, apps []model.Application) ([]applicationView, error) {
	ids := make([]string, len(apps))
	for i, a := range apps {
		ids[i] = a.ScholarshipID
	}
	found, err := s.scholarshipsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]applicationView, len(apps))
	for i, a := range apps {
		views[i] = applicationView{Application: a, ScholarshipDetails: summaries(found, a.ScholarshipID)}
	}
	return views, nil
}

// withReviewDetails はレビュー一覧に奨学金のスナップショットを結合する。
func (s *Server) withReviewDetails(ctx context.Context, reviews []model.Review) ([]reviewView, error) {
	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ScholarshipID
	}
	found, err := s.scholarshipsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]reviewView, len(reviews))
	for i, r := range reviews {
		views[i] = reviewView{Review: r, ScholarshipDetails: summaries(found, r.ScholarshipID)}
	}
	return views, nil
}
