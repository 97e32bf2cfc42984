package rating

// Aggregate は奨学金1件分の評価集計。平均ではなく合計と件数を保持し、平均は読み出し時に求める。
// 評価値は整数なので合計はfloat64で誤差なく表現できる。
type Aggregate struct {
	// Sum は削除されていないレビュー評価の合計。
	Sum float64
	// Count は削除されていないレビューの件数。
	Count int64
}

// Mean は平均評価を返す。レビューが0件の場合は0。
func (a Aggregate) Mean() float64 {
	if a.Count <= 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Add はレビュー1件の追加を反映した集計を返す。
func (a Aggregate) Add(r float64) Aggregate {
	return Aggregate{Sum: a.Sum + r, Count: a.Count + 1}
}

// Remove はレビュー1件の削除を反映した集計を返す。
// 件数が1以下の場合はゼロ状態に戻す。
func (a Aggregate) Remove(r float64) Aggregate {
	if a.Count <= 1 {
		return Aggregate{}
	}
	return Aggregate{Sum: a.Sum - r, Count: a.Count - 1}
}

// Replace はレビュー1件の評価値の変更を反映した集計を返す。
func (a Aggregate) Replace(old, updated float64) Aggregate {
	if a.Count <= 0 {
		return Aggregate{}
	}
	return Aggregate{Sum: a.Sum - old + updated, Count: a.Count}
}
