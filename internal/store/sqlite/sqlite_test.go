package sqlite

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/scholarhub/internal/model"
	"github.com/nao1215/scholarhub/internal/rating"
	"github.com/nao1215/scholarhub/internal/store"
)

// openTestStore はテスト用のインメモリストアを開く。
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), MemoryPath)
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(t.Context()) })
	return s
}

// createTestScholarship はテスト用の奨学金を作成するヘルパー関数。
func createTestScholarship(t *testing.T, s *Store, name string, fees float64, postDate time.Time) model.Scholarship {
	t.Helper()
	sch, err := s.CreateScholarship(t.Context(), model.Scholarship{
		ScholarshipName: name,
		UniversityName:  "Tokyo University",
		Degree:          "Masters",
		ApplicationFees: fees,
		PostDate:        postDate,
	})
	if err != nil {
		t.Fatalf("テスト用奨学金の作成に失敗: %v", err)
	}
	return sch
}

func TestUsers(t *testing.T) {
	t.Parallel()

	t.Run("未登録の場合のみApplicantとして作成される", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		created, err := s.CreateUserIfAbsent(t.Context(), model.User{Email: "a@example.com", Name: "A", Role: model.RoleAdmin})
		if err != nil {
			t.Fatalf("ユーザー作成に失敗: %v", err)
		}
		if !created {
			t.Error("created: got false, want true")
		}

		created, err = s.CreateUserIfAbsent(t.Context(), model.User{Email: "a@example.com", Name: "B"})
		if err != nil {
			t.Fatalf("ユーザー作成に失敗: %v", err)
		}
		if created {
			t.Error("2回目の作成でcreatedがtrueになっています")
		}

		u, err := s.GetUser(t.Context(), "a@example.com")
		if err != nil {
			t.Fatalf("ユーザー取得に失敗: %v", err)
		}
		if u.Role != model.RoleApplicant {
			t.Errorf("role: got %s, want %s", u.Role, model.RoleApplicant)
		}
		if u.Name != "A" {
			t.Errorf("name: got %s, want A", u.Name)
		}
	})

	t.Run("Upsertはロールを変更しない", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		if err := s.UpsertUser(t.Context(), model.User{Email: "m@example.com", Name: "M"}); err != nil {
			t.Fatalf("ユーザー保存に失敗: %v", err)
		}
		if err := s.UpdateUserRole(t.Context(), "m@example.com", model.RoleModerator); err != nil {
			t.Fatalf("ロール更新に失敗: %v", err)
		}
		if err := s.UpsertUser(t.Context(), model.User{Email: "m@example.com", Name: "M2", PhotoURL: "p.png"}); err != nil {
			t.Fatalf("ユーザー保存に失敗: %v", err)
		}

		u, err := s.GetUser(t.Context(), "m@example.com")
		if err != nil {
			t.Fatalf("ユーザー取得に失敗: %v", err)
		}
		if u.Role != model.RoleModerator {
			t.Errorf("role: got %s, want %s", u.Role, model.RoleModerator)
		}
		if u.Name != "M2" || u.PhotoURL != "p.png" {
			t.Errorf("プロフィールが更新されていません: %+v", u)
		}
	})

	t.Run("ロールで絞り込める", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			if _, err := s.CreateUserIfAbsent(t.Context(), model.User{Email: email}); err != nil {
				t.Fatalf("ユーザー作成に失敗: %v", err)
			}
		}
		if err := s.UpdateUserRole(t.Context(), "b@example.com", model.RoleAdmin); err != nil {
			t.Fatalf("ロール更新に失敗: %v", err)
		}

		all, err := s.ListUsers(t.Context(), "")
		if err != nil {
			t.Fatalf("ユーザー一覧取得に失敗: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("件数: got %d, want 3", len(all))
		}

		admins, err := s.ListUsers(t.Context(), model.RoleAdmin)
		if err != nil {
			t.Fatalf("ユーザー一覧取得に失敗: %v", err)
		}
		if len(admins) != 1 || admins[0].Email != "b@example.com" {
			t.Errorf("Admin一覧: got %+v", admins)
		}
	})

	t.Run("存在しないユーザーはErrNotFound", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		if _, err := s.RoleOf(t.Context(), "none@example.com"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("RoleOf: got %v, want ErrNotFound", err)
		}
		if err := s.UpdateUserRole(t.Context(), "none@example.com", model.RoleAdmin); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("UpdateUserRole: got %v, want ErrNotFound", err)
		}
		if err := s.DeleteUser(t.Context(), "none@example.com"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("DeleteUser: got %v, want ErrNotFound", err)
		}
	})
}

func TestScholarships(t *testing.T) {
	t.Parallel()

	t.Run("作成直後の評価は0件", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		sch := createTestScholarship(t, s, "Global Excellence", 10, time.Time{})
		got, err := s.GetScholarship(t.Context(), sch.ID)
		if err != nil {
			t.Fatalf("奨学金取得に失敗: %v", err)
		}
		if got.Rating != 0 || got.ReviewCount != 0 {
			t.Errorf("評価: got rating=%v count=%d, want 0/0", got.Rating, got.ReviewCount)
		}
		if got.PostDate.IsZero() {
			t.Error("掲載日が設定されていません")
		}
	})

	t.Run("部分更新は指定したフィールドのみ変更する", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		sch := createTestScholarship(t, s, "Before", 10, time.Time{})
		name := "After"
		if err := s.UpdateScholarship(t.Context(), sch.ID, model.ScholarshipPatch{ScholarshipName: &name}); err != nil {
			t.Fatalf("奨学金更新に失敗: %v", err)
		}

		got, err := s.GetScholarship(t.Context(), sch.ID)
		if err != nil {
			t.Fatalf("奨学金取得に失敗: %v", err)
		}
		if got.ScholarshipName != "After" {
			t.Errorf("scholarshipName: got %s, want After", got.ScholarshipName)
		}
		if got.ApplicationFees != 10 {
			t.Errorf("applicationFees: got %v, want 10", got.ApplicationFees)
		}

		if err := s.UpdateScholarship(t.Context(), "missing", model.ScholarshipPatch{}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("存在しない奨学金の更新: got %v, want ErrNotFound", err)
		}
	})

	t.Run("検索とページングで総件数を返す", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		for i := range 10 {
			createTestScholarship(t, s, fmt.Sprintf("Science Fund %d", i), 10, time.Time{})
		}
		createTestScholarship(t, s, "Arts Grant", 10, time.Time{})

		list, total, err := s.ListScholarships(t.Context(), model.ScholarshipQuery{Search: "science", Page: 2, PageSize: 8})
		if err != nil {
			t.Fatalf("奨学金一覧取得に失敗: %v", err)
		}
		if total != 10 {
			t.Errorf("総件数: got %d, want 10", total)
		}
		if len(list) != 2 {
			t.Fatalf("2ページ目の件数: got %d, want 2", len(list))
		}
		if list[0].ScholarshipName != "Science Fund 8" {
			t.Errorf("2ページ目の先頭: got %s, want Science Fund 8", list[0].ScholarshipName)
		}
	})

	t.Run("検索語のワイルドカードはリテラルとして扱う", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		createTestScholarship(t, s, "100% Funded", 10, time.Time{})
		createTestScholarship(t, s, "Partial", 10, time.Time{})

		list, total, err := s.ListScholarships(t.Context(), model.ScholarshipQuery{Search: "%"})
		if err != nil {
			t.Fatalf("奨学金一覧取得に失敗: %v", err)
		}
		if total != 1 || len(list) != 1 {
			t.Errorf("件数: got total=%d len=%d, want 1", total, len(list))
		}
	})

	t.Run("ASCII以外の文字も大文字小文字を区別せず検索する", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		createTestScholarship(t, s, "École Polytechnique Grant", 10, time.Time{})
		createTestScholarship(t, s, "Ärzte Stipendium", 10, time.Time{})
		createTestScholarship(t, s, "Other", 10, time.Time{})

		for _, search := range []string{"ÉCOLE", "école", "äRZTE"} {
			list, total, err := s.ListScholarships(t.Context(), model.ScholarshipQuery{Search: search})
			if err != nil {
				t.Fatalf("奨学金一覧取得に失敗: %v", err)
			}
			if total != 1 || len(list) != 1 {
				t.Errorf("%q の件数: got total=%d len=%d, want 1", search, total, len(list))
			}
		}
	})

	t.Run("範囲外のページは空の一覧と総件数を返す", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		for i := range 3 {
			createTestScholarship(t, s, fmt.Sprintf("Fund %d", i), 10, time.Time{})
		}

		list, total, err := s.ListScholarships(t.Context(), model.ScholarshipQuery{Page: 5, PageSize: 8})
		if err != nil {
			t.Fatalf("奨学金一覧取得に失敗: %v", err)
		}
		if total != 3 {
			t.Errorf("総件数: got %d, want 3", total)
		}
		if list == nil || len(list) != 0 {
			t.Errorf("一覧: got %v, want 空のスライス", list)
		}
	})

	t.Run("人気の奨学金は応募料の安い順、同額なら新しい順", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		createTestScholarship(t, s, "Expensive", 100, base)
		createTestScholarship(t, s, "Cheap Old", 5, base)
		createTestScholarship(t, s, "Cheap New", 5, base.Add(24*time.Hour))

		list, err := s.TopScholarships(t.Context(), 2)
		if err != nil {
			t.Fatalf("人気の奨学金の取得に失敗: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("件数: got %d, want 2", len(list))
		}
		if list[0].ScholarshipName != "Cheap New" || list[1].ScholarshipName != "Cheap Old" {
			t.Errorf("並び順: got %s, %s", list[0].ScholarshipName, list[1].ScholarshipName)
		}
	})

	t.Run("評価集計の増減と件数0への復帰", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		sch := createTestScholarship(t, s, "Rated", 10, time.Time{})
		for _, r := range []float64{4, 3} {
			if err := s.AdjustRating(t.Context(), sch.ID, r, 1); err != nil {
				t.Fatalf("評価集計の更新に失敗: %v", err)
			}
		}
		got, _ := s.GetScholarship(t.Context(), sch.ID)
		if got.Rating != 3.5 || got.ReviewCount != 2 {
			t.Errorf("評価: got rating=%v count=%d, want 3.5/2", got.Rating, got.ReviewCount)
		}

		if err := s.AdjustRating(t.Context(), sch.ID, -4, -1); err != nil {
			t.Fatalf("評価集計の更新に失敗: %v", err)
		}
		got, _ = s.GetScholarship(t.Context(), sch.ID)
		if got.Rating != 3 || got.ReviewCount != 1 {
			t.Errorf("評価: got rating=%v count=%d, want 3/1", got.Rating, got.ReviewCount)
		}

		// 件数を超えて減らしても負にならない
		if err := s.AdjustRating(t.Context(), sch.ID, -3, -2); err != nil {
			t.Fatalf("評価集計の更新に失敗: %v", err)
		}
		got, _ = s.GetScholarship(t.Context(), sch.ID)
		if got.Rating != 0 || got.ReviewCount != 0 {
			t.Errorf("評価: got rating=%v count=%d, want 0/0", got.Rating, got.ReviewCount)
		}

		if err := s.AdjustRating(t.Context(), "missing", 1, 1); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("存在しない奨学金: got %v, want ErrNotFound", err)
		}
	})

	t.Run("複数IDでまとめて取得できる", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		a := createTestScholarship(t, s, "A", 10, time.Time{})
		b := createTestScholarship(t, s, "B", 10, time.Time{})

		got, err := s.GetScholarshipsByIDs(t.Context(), []string{a.ID, b.ID, "missing"})
		if err != nil {
			t.Fatalf("一括取得に失敗: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("件数: got %d, want 2", len(got))
		}
		if got[b.ID].ScholarshipName != "B" {
			t.Errorf("B: got %+v", got[b.ID])
		}
	})
}

func TestApplications(t *testing.T) {
	t.Parallel()

	t.Run("同じ奨学金への重複応募はErrConflict", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		app := model.Application{Email: "a@example.com", ScholarshipID: "sch-1", UserName: "A"}
		created, err := s.CreateApplication(t.Context(), app)
		if err != nil {
			t.Fatalf("応募作成に失敗: %v", err)
		}
		if created.Status != model.StatusPending {
			t.Errorf("status: got %s, want pending", created.Status)
		}

		if _, err := s.CreateApplication(t.Context(), app); !errors.Is(err, store.ErrConflict) {
			t.Errorf("重複応募: got %v, want ErrConflict", err)
		}

		// 別の奨学金には応募できる
		app.ScholarshipID = "sch-2"
		if _, err := s.CreateApplication(t.Context(), app); err != nil {
			t.Errorf("別の奨学金への応募に失敗: %v", err)
		}
	})

	t.Run("Upsertは審査状態を維持して応募者情報を更新する", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		created, err := s.CreateApplication(t.Context(), model.Application{Email: "a@example.com", ScholarshipID: "sch-1", Phone: "111"})
		if err != nil {
			t.Fatalf("応募作成に失敗: %v", err)
		}
		if err := s.ReviewApplication(t.Context(), created.ID, model.ApplicationReview{Status: model.StatusProcessing, Feedback: "確認中"}); err != nil {
			t.Fatalf("審査結果の更新に失敗: %v", err)
		}

		saved, err := s.UpsertApplication(t.Context(), model.Application{Email: "a@example.com", ScholarshipID: "sch-1", Phone: "222"})
		if err != nil {
			t.Fatalf("応募保存に失敗: %v", err)
		}
		if saved.ID != created.ID {
			t.Errorf("id: got %s, want %s", saved.ID, created.ID)
		}
		if saved.Phone != "222" {
			t.Errorf("phone: got %s, want 222", saved.Phone)
		}
		if saved.Status != model.StatusProcessing || saved.Feedback != "確認中" {
			t.Errorf("審査状態が変更されています: %+v", saved)
		}
	})

	t.Run("メールアドレスで絞り込める", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		for _, a := range []model.Application{
			{Email: "a@example.com", ScholarshipID: "sch-1"},
			{Email: "b@example.com", ScholarshipID: "sch-1"},
			{Email: "a@example.com", ScholarshipID: "sch-2"},
		} {
			if _, err := s.CreateApplication(t.Context(), a); err != nil {
				t.Fatalf("応募作成に失敗: %v", err)
			}
		}

		list, err := s.ListApplications(t.Context(), model.Filter{Email: "a@example.com"})
		if err != nil {
			t.Fatalf("応募一覧取得に失敗: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("件数: got %d, want 2", len(list))
		}

		phone := "999"
		if err := s.UpdateApplication(t.Context(), list[0].ID, model.ApplicationPatch{Phone: &phone}); err != nil {
			t.Fatalf("応募更新に失敗: %v", err)
		}
		got, err := s.GetApplication(t.Context(), list[0].ID)
		if err != nil {
			t.Fatalf("応募取得に失敗: %v", err)
		}
		if got.Phone != "999" {
			t.Errorf("phone: got %s, want 999", got.Phone)
		}

		if err := s.DeleteApplication(t.Context(), list[0].ID); err != nil {
			t.Fatalf("応募削除に失敗: %v", err)
		}
		if _, err := s.GetApplication(t.Context(), list[0].ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("削除後の取得: got %v, want ErrNotFound", err)
		}
	})
}

func TestReviews(t *testing.T) {
	t.Parallel()

	t.Run("作成・更新・削除・復元", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		r, err := s.CreateReview(t.Context(), model.Review{Email: "a@example.com", ScholarshipID: "sch-1", Rating: 4, Comment: "良い"})
		if err != nil {
			t.Fatalf("レビュー作成に失敗: %v", err)
		}

		rating := 2
		prev, err := s.UpdateReview(t.Context(), r.ID, model.ReviewPatch{Rating: &rating})
		if err != nil {
			t.Fatalf("レビュー更新に失敗: %v", err)
		}
		if prev.Rating != 4 {
			t.Errorf("更新直前の評価値: got %d, want 4", prev.Rating)
		}
		got, err := s.GetReview(t.Context(), r.ID)
		if err != nil {
			t.Fatalf("レビュー取得に失敗: %v", err)
		}
		if got.Rating != 2 || got.Comment != "良い" {
			t.Errorf("レビュー: got %+v", got)
		}

		removed, err := s.DeleteReview(t.Context(), r.ID)
		if err != nil {
			t.Fatalf("レビュー削除に失敗: %v", err)
		}
		if removed.ID != r.ID || removed.Rating != 2 {
			t.Errorf("削除したレビュー: got %+v", removed)
		}
		if _, err := s.DeleteReview(t.Context(), r.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("2回目の削除: got %v, want ErrNotFound", err)
		}
		if _, err := s.UpdateReview(t.Context(), r.ID, model.ReviewPatch{Rating: &rating}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("削除済みレビューの更新: got %v, want ErrNotFound", err)
		}

		if err := s.RestoreReview(t.Context(), got); err != nil {
			t.Fatalf("レビュー復元に失敗: %v", err)
		}
		restored, err := s.GetReview(t.Context(), r.ID)
		if err != nil {
			t.Fatalf("復元したレビューの取得に失敗: %v", err)
		}
		if restored.Rating != 2 {
			t.Errorf("rating: got %d, want 2", restored.Rating)
		}
	})

	t.Run("同時更新でも更新直前の評価値の差分は最終値と一致する", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		r, err := s.CreateReview(t.Context(), model.Review{Email: "a@example.com", ScholarshipID: "sch-1", Rating: 3})
		if err != nil {
			t.Fatalf("レビュー作成に失敗: %v", err)
		}

		const workers = 20
		deltas := make(chan int, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Go(func() {
				rating := i%5 + 1
				prev, err := s.UpdateReview(t.Context(), r.ID, model.ReviewPatch{Rating: &rating})
				if err != nil {
					t.Errorf("レビュー更新に失敗: %v", err)
					return
				}
				deltas <- rating - prev.Rating
			})
		}
		wg.Wait()
		close(deltas)

		sum := 0
		for d := range deltas {
			sum += d
		}
		got, err := s.GetReview(t.Context(), r.ID)
		if err != nil {
			t.Fatalf("レビュー取得に失敗: %v", err)
		}
		if 3+sum != got.Rating {
			t.Errorf("差分の合計: got 3%+d, want 最終値 %d", sum, got.Rating)
		}
	})

	t.Run("範囲外の評価値は保存できない", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		if _, err := s.CreateReview(t.Context(), model.Review{Email: "a@example.com", ScholarshipID: "sch-1", Rating: 6}); err == nil {
			t.Error("評価値6で保存できてしまいました")
		}
	})

	t.Run("奨学金で絞り込める", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)

		for _, sid := range []string{"sch-1", "sch-1", "sch-2"} {
			if _, err := s.CreateReview(t.Context(), model.Review{Email: "a@example.com", ScholarshipID: sid, Rating: 5}); err != nil {
				t.Fatalf("レビュー作成に失敗: %v", err)
			}
		}
		list, err := s.ListReviews(t.Context(), model.Filter{ScholarshipID: "sch-1"})
		if err != nil {
			t.Fatalf("レビュー一覧取得に失敗: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("件数: got %d, want 2", len(list))
		}
	})
}

func TestCasefold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Science", "science"},
		{"ÉCOLE", "école"},
		{"ÄRZTE", "ärzte"},
		{"100%_", "100%_"},
	}
	for _, tt := range tests {
		if got := casefold(tt.in); got != tt.want {
			t.Errorf("casefold(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAdjustRatingMatchesAggregate(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	sch := createTestScholarship(t, s, "Rated", 10, time.Time{})

	rng := rand.New(rand.NewPCG(7, 11))
	var want rating.Aggregate
	var live []float64
	for range 200 {
		r := float64(rng.IntN(5) + 1)
		switch {
		case len(live) == 0 || rng.IntN(3) == 0:
			want = want.Add(r)
			live = append(live, r)
			if err := s.AdjustRating(t.Context(), sch.ID, r, 1); err != nil {
				t.Fatalf("評価集計の加算に失敗: %v", err)
			}
		case rng.IntN(2) == 0:
			i := rng.IntN(len(live))
			want = want.Replace(live[i], r)
			if err := s.AdjustRating(t.Context(), sch.ID, r-live[i], 0); err != nil {
				t.Fatalf("評価集計の変更に失敗: %v", err)
			}
			live[i] = r
		default:
			i := rng.IntN(len(live))
			want = want.Remove(live[i])
			if err := s.AdjustRating(t.Context(), sch.ID, -live[i], -1); err != nil {
				t.Fatalf("評価集計の減算に失敗: %v", err)
			}
			live = append(live[:i], live[i+1:]...)
		}

		got, err := s.GetScholarship(t.Context(), sch.ID)
		if err != nil {
			t.Fatalf("奨学金取得に失敗: %v", err)
		}
		if got.ReviewCount != want.Count || math.Abs(got.Rating-want.Mean()) > 1e-9 {
			t.Fatalf("集計: got rating=%v count=%d, want rating=%v count=%d", got.Rating, got.ReviewCount, want.Mean(), want.Count)
		}
	}
}
