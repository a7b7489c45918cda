package query

import (
	"slices"
	"testing"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// 基準時刻: 2026-03-10 18:00 (Asia/Tokyo)
var (
	tokyo   = time.FixedZone("JST", 9*60*60)
	testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, tokyo)
)

func at(day, hour int) *time.Time {
	t := time.Date(2026, 3, day, hour, 0, 0, 0, tokyo)
	return &t
}

func mkTask(id string, opts ...func(*model.Task)) model.Task {
	t := model.Task{
		ID:        id,
		Title:     id,
		Priority:  model.PriorityMedium,
		Category:  model.DefaultCategory,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, tokyo),
	}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func withDeadline(d *time.Time) func(*model.Task) { return func(t *model.Task) { t.Deadline = d } }
func withPriority(p model.Priority) func(*model.Task) {
	return func(t *model.Task) { t.Priority = p }
}
func withCategory(c string) func(*model.Task) { return func(t *model.Task) { t.Category = c } }
func completed(t *model.Task)                { t.IsCompleted = true }
func createdAt(day int) func(*model.Task) {
	return func(t *model.Task) { t.CreatedAt = time.Date(2026, 3, day, 0, 0, 0, 0, tokyo) }
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// --- カテゴリ ---

func TestApply_CategoryFilter(t *testing.T) {
	tasks := []model.Task{
		mkTask("w1", withCategory("Work")),
		mkTask("p1", withCategory("Personal")),
		mkTask("w2", withCategory("Work")),
		mkTask("lower", withCategory("work")),
	}

	got := ids(Apply(tasks, Config{Category: "Work"}, testNow))
	slices.Sort(got)
	if want := []string{"w1", "w2"}; !slices.Equal(got, want) {
		t.Errorf("Work = %v, want %v (exact match only)", got, want)
	}

	for _, all := range []string{"", CategoryAll} {
		if n := len(Apply(tasks, Config{Category: all}, testNow)); n != len(tasks) {
			t.Errorf("Category %q returned %d tasks, want %d", all, n, len(tasks))
		}
	}
}

// "All"の結果は任意のカテゴリ指定の結果を包含すること
func TestApply_AllIsSupersetOfAnyCategory(t *testing.T) {
	tasks := []model.Task{
		mkTask("a", withCategory("Work")),
		mkTask("b", withCategory("Health")),
		mkTask("c", withCategory("Study"), completed),
		mkTask("d", withCategory("Others")),
	}
	all := ids(Apply(tasks, Config{Category: CategoryAll}, testNow))

	for _, c := range model.Categories {
		for _, id := range ids(Apply(tasks, Config{Category: c}, testNow)) {
			if !slices.Contains(all, id) {
				t.Errorf("category %q returned %q missing from All", c, id)
			}
		}
	}
}

// --- 期限 ---

func TestApply_TimeFilters(t *testing.T) {
	tasks := []model.Task{
		mkTask("none"),
		mkTask("yesterday", withDeadline(at(9, 12))),
		mkTask("yesterday-done", withDeadline(at(9, 12)), completed),
		mkTask("today-morning", withDeadline(at(10, 8))),
		mkTask("today-night", withDeadline(at(10, 23))),
		mkTask("midnight-next", withDeadline(at(11, 0))),
		mkTask("in-6-days", withDeadline(at(16, 23))),
		mkTask("in-7-days", withDeadline(at(17, 0))),
	}

	tests := []struct {
		filter TimeFilter
		want   []string
	}{
		{Anytime, []string{"in-6-days", "in-7-days", "midnight-next", "none", "today-morning", "today-night", "yesterday", "yesterday-done"}},
		{Today, []string{"today-morning", "today-night"}},
		{ThisWeek, []string{"in-6-days", "midnight-next", "today-morning", "today-night"}},
		{Overdue, []string{"today-morning", "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			got := ids(Apply(tasks, Config{TimeFilter: tt.filter}, testNow))
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// 完了済みの期限切れタスクはOverdueに含まれないこと
func TestApply_OverdueExcludesCompleted(t *testing.T) {
	tasks := []model.Task{mkTask("done", withDeadline(at(9, 12)), completed)}
	if got := Apply(tasks, Config{TimeFilter: Overdue}, testNow); len(got) != 0 {
		t.Errorf("Overdue = %v, want empty", ids(got))
	}
}

func TestApply_CustomRange(t *testing.T) {
	tasks := []model.Task{
		mkTask("none"),
		mkTask("mar11-start", withDeadline(at(11, 0))),
		mkTask("mar12-late", func(t *model.Task) {
			d := time.Date(2026, 3, 12, 23, 59, 59, 0, tokyo)
			t.Deadline = &d
		}),
		mkTask("mar13", withDeadline(at(13, 0))),
		mkTask("mar10", withDeadline(at(10, 23))),
	}
	start := Date{2026, time.March, 11}
	end := Date{2026, time.March, 12}

	tests := []struct {
		name string
		r    Range
		want []string
	}{
		{"両端指定", Range{Start: &start, End: &end}, []string{"mar11-start", "mar12-late"}},
		{"開始のみ", Range{Start: &start}, []string{"mar11-start", "mar12-late", "mar13"}},
		{"終了のみ", Range{End: &end}, []string{"mar10", "mar11-start", "mar12-late"}},
		{"指定なしは期限付きすべて", Range{}, []string{"mar10", "mar11-start", "mar12-late", "mar13"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(tasks, Config{TimeFilter: CustomRange, CustomRange: tt.r}, testNow))
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// 「今日」の境界はnowのLocationの0時で決まること
func TestApply_TodayUsesLocationOfNow(t *testing.T) {
	// 2026-03-10 01:00 JST = 2026-03-09 16:00 UTC
	deadline := time.Date(2026, 3, 10, 1, 0, 0, 0, tokyo)
	tasks := []model.Task{mkTask("early", withDeadline(&deadline))}

	if got := Apply(tasks, Config{TimeFilter: Today}, testNow); len(got) != 1 {
		t.Errorf("JST now: got %v, want [early]", ids(got))
	}
	if got := Apply(tasks, Config{TimeFilter: Today}, testNow.UTC()); len(got) != 0 {
		t.Errorf("UTC now: got %v, want empty", ids(got))
	}
}

// --- 並べ替え ---

func TestApply_DefaultSortNewestFirst(t *testing.T) {
	tasks := []model.Task{
		mkTask("old", createdAt(1)),
		mkTask("new", createdAt(5)),
		mkTask("mid", createdAt(3)),
		mkTask("newest-done", createdAt(9), completed),
	}
	got := ids(Apply(tasks, Config{}, testNow))
	if want := []string{"new", "mid", "old", "newest-done"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestApply_DeadlineSortMissingIsEpoch(t *testing.T) {
	tasks := []model.Task{
		mkTask("late", withDeadline(at(20, 0))),
		mkTask("none"),
		mkTask("soon", withDeadline(at(11, 0))),
	}
	got := ids(Apply(tasks, Config{SortBy: SortDeadline}, testNow))
	if want := []string{"none", "soon", "late"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestApply_PrioritySort(t *testing.T) {
	tasks := []model.Task{
		mkTask("low", withPriority(model.PriorityLow)),
		mkTask("unknown", withPriority("Someday")),
		mkTask("high", withPriority(model.PriorityHigh)),
		mkTask("medium", withPriority(model.PriorityMedium)),
	}
	got := ids(Apply(tasks, Config{SortBy: SortPriority}, testNow))
	if want := []string{"high", "medium", "low", "unknown"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// 期限切れのLowが翌日期限のHighより上に来ること (110 > 90)
func TestApply_SmartMixOverdueOutranksUrgentHigh(t *testing.T) {
	tasks := []model.Task{
		mkTask("A", withDeadline(at(11, 9)), withPriority(model.PriorityHigh)),
		mkTask("B", withDeadline(at(9, 18)), withPriority(model.PriorityLow)),
	}
	got := ids(Apply(tasks, Config{SortBy: SortSmartMix}, testNow))
	if want := []string{"B", "A"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if s := smartMixScore(tasks[0], testNow); s != 90 {
		t.Errorf("score(A) = %d, want 90", s)
	}
	if s := smartMixScore(tasks[1], testNow); s != 110 {
		t.Errorf("score(B) = %d, want 110", s)
	}
}

// 期限未設定はエポック扱いで期限切れとして加点される
func TestSmartMixScore_NoDeadlineCountsAsOverdue(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		want int
	}{
		{"期限なしHigh", mkTask("x", withPriority(model.PriorityHigh)), 150},
		{"期限なしLow", mkTask("x", withPriority(model.PriorityLow)), 110},
		{"24時間以内Medium", mkTask("x", withDeadline(at(11, 17))), 70},
		{"24時間ちょうどは加点なし", mkTask("x", withDeadline(at(11, 18))), 30},
		{"遠い期限Low", mkTask("x", withDeadline(at(25, 0)), withPriority(model.PriorityLow)), 10},
		{"未定義の優先度", mkTask("x", withDeadline(at(25, 0)), withPriority("Someday")), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := smartMixScore(tt.task, testNow); got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

// 同じ完了状態・同じキーの要素は入力順を保つこと
func TestApply_StableSort(t *testing.T) {
	tasks := []model.Task{
		mkTask("h1", withPriority(model.PriorityHigh)),
		mkTask("l1", withPriority(model.PriorityLow)),
		mkTask("h2", withPriority(model.PriorityHigh)),
		mkTask("l2", withPriority(model.PriorityLow)),
		mkTask("h3", withPriority(model.PriorityHigh)),
	}
	got := ids(Apply(tasks, Config{SortBy: SortPriority}, testNow))
	if want := []string{"h1", "h2", "h3", "l1", "l2"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Defaultで作成日時がすべて同じ場合は入力順のまま
	got = ids(Apply(tasks, Config{}, testNow))
	if want := ids(tasks); !slices.Equal(got, want) {
		t.Errorf("default with equal createdAt: got %v, want %v", got, want)
	}
}

func TestApply_CompletionPartitionAndIdempotence(t *testing.T) {
	tasks := []model.Task{
		mkTask("a", completed, withPriority(model.PriorityHigh), withDeadline(at(9, 0))),
		mkTask("b", withPriority(model.PriorityLow)),
		mkTask("c", completed, createdAt(8)),
		mkTask("d", withDeadline(at(12, 0)), createdAt(2)),
		mkTask("e", withPriority(model.PriorityHigh), withDeadline(at(30, 0)), createdAt(6)),
	}

	for _, sortBy := range Sorts {
		t.Run(sortBy.String(), func(t *testing.T) {
			cfg := Config{SortBy: sortBy}
			first := Apply(tasks, cfg, testNow)

			seenCompleted := false
			for _, task := range first {
				if task.IsCompleted {
					seenCompleted = true
				} else if seenCompleted {
					t.Fatalf("incomplete %q after a completed task: %v", task.ID, ids(first))
				}
			}

			second := Apply(tasks, cfg, testNow)
			if !slices.Equal(ids(first), ids(second)) {
				t.Errorf("not idempotent: %v vs %v", ids(first), ids(second))
			}
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tasks := []model.Task{
		mkTask("old", createdAt(1)),
		mkTask("new", createdAt(5)),
	}
	before := ids(tasks)
	Apply(tasks, Config{}, testNow)
	if !slices.Equal(ids(tasks), before) {
		t.Errorf("input reordered: %v", ids(tasks))
	}
}

func TestApply_EmptyInput(t *testing.T) {
	got := Apply(nil, Config{TimeFilter: Overdue, SortBy: SortSmartMix}, testNow)
	if got == nil || len(got) != 0 {
		t.Errorf("Apply(nil) = %v, want empty non-nil slice", got)
	}
}

// --- 解析 ---

func TestParseTimeFilter(t *testing.T) {
	tests := map[string]TimeFilter{
		"":             Anytime,
		"Anytime":      Anytime,
		"today":        Today,
		"This Week":    ThisWeek,
		"this-week":    ThisWeek,
		"THISWEEK":     ThisWeek,
		"Overdue":      Overdue,
		"Custom Range": CustomRange,
		"custom":       CustomRange,
	}
	for in, want := range tests {
		got, err := ParseTimeFilter(in)
		if err != nil || got != want {
			t.Errorf("ParseTimeFilter(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTimeFilter("next month"); err == nil {
		t.Error("ParseTimeFilter(next month) expected error")
	}
}

func TestParseSortBy(t *testing.T) {
	tests := map[string]SortBy{
		"":          SortDefault,
		"default":   SortDefault,
		"Smart Mix": SortSmartMix,
		"smartmix":  SortSmartMix,
		"smart_mix": SortSmartMix,
		"Deadline":  SortDeadline,
		"priority":  SortPriority,
	}
	for in, want := range tests {
		got, err := ParseSortBy(in)
		if err != nil || got != want {
			t.Errorf("ParseSortBy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSortBy("alphabetical"); err == nil {
		t.Error("ParseSortBy(alphabetical) expected error")
	}
}
