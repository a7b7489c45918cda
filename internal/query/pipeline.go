// Package query はクライアント側で表示するタスク一覧の絞り込みと並べ替えを行う。
//
// Apply はカテゴリ、期限、並び順の3段階を順に適用する純粋関数で、
// 入力スライスを変更せず、同じ入力と時刻に対して常に同じ結果を返す。
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// CategoryAll はカテゴリで絞り込まないことを表す。
const CategoryAll = "All"

// TimeFilter は期限による絞り込み条件。
type TimeFilter int

const (
	Anytime TimeFilter = iota
	Today
	ThisWeek
	Overdue
	CustomRange
)

var timeFilterLabels = map[TimeFilter]string{
	Anytime:     "Anytime",
	Today:       "Today",
	ThisWeek:    "This Week",
	Overdue:     "Overdue",
	CustomRange: "Custom Range",
}

// String は画面表示用のラベルを返す。
func (f TimeFilter) String() string {
	if s, ok := timeFilterLabels[f]; ok {
		return s
	}
	return fmt.Sprintf("TimeFilter(%d)", int(f))
}

// TimeFilters は選択肢の表示順。
var TimeFilters = []TimeFilter{Anytime, Today, ThisWeek, Overdue, CustomRange}

// ParseTimeFilter はラベル（"This Week"等）または識別子（"thisweek"、"this-week"等）を
// 大文字小文字を区別せずに解析する。空文字列はAnytime。
func ParseTimeFilter(s string) (TimeFilter, error) {
	if strings.TrimSpace(s) == "" {
		return Anytime, nil
	}
	key := normalizeName(s)
	for _, f := range TimeFilters {
		if normalizeName(f.String()) == key {
			return f, nil
		}
	}
	if key == "custom" || key == "range" {
		return CustomRange, nil
	}
	return Anytime, fmt.Errorf("unknown time filter %q", s)
}

// SortBy は並び順。
type SortBy int

const (
	SortDefault SortBy = iota
	SortSmartMix
	SortDeadline
	SortPriority
)

var sortLabels = map[SortBy]string{
	SortDefault:  "Default",
	SortSmartMix: "Smart Mix",
	SortDeadline: "Deadline",
	SortPriority: "Priority",
}

func (s SortBy) String() string {
	if l, ok := sortLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("SortBy(%d)", int(s))
}

// Sorts は選択肢の表示順。
var Sorts = []SortBy{SortDefault, SortSmartMix, SortDeadline, SortPriority}

// ParseSortBy はラベルまたは識別子を大文字小文字を区別せずに解析する。空文字列はDefault。
func ParseSortBy(s string) (SortBy, error) {
	if strings.TrimSpace(s) == "" {
		return SortDefault, nil
	}
	key := normalizeName(s)
	for _, o := range Sorts {
		if normalizeName(o.String()) == key {
			return o, nil
		}
	}
	return SortDefault, fmt.Errorf("unknown sort %q", s)
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// Range はCustomRangeの境界。nilの側は無制限。
type Range struct {
	Start *Date
	End   *Date
}

// Config は一覧の表示条件。ゼロ値は全件を作成日時の新しい順に並べる。
type Config struct {
	Category    string
	TimeFilter  TimeFilter
	CustomRange Range
	SortBy      SortBy
}

// Apply はtasksを絞り込み、並べ替えた新しいスライスを返す。
// nowのLocationが「今日」の境界を決める。
func Apply(tasks []model.Task, cfg Config, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matchCategory(t, cfg.Category) && matchTime(t, cfg, now) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, comparator(cfg.SortBy, now))
	return out
}

func matchCategory(t model.Task, category string) bool {
	if category == "" || category == CategoryAll {
		return true
	}
	return t.Category == category
}

func matchTime(t model.Task, cfg Config, now time.Time) bool {
	if cfg.TimeFilter == Anytime {
		return true
	}
	if t.Deadline == nil {
		return false
	}
	d := *t.Deadline
	todayStart := startOfDay(now)

	switch cfg.TimeFilter {
	case Today:
		return !d.Before(todayStart) && d.Before(todayStart.AddDate(0, 0, 1))
	case ThisWeek:
		return !d.Before(todayStart) && d.Before(todayStart.AddDate(0, 0, 7))
	case Overdue:
		return d.Before(now) && !t.IsCompleted
	case CustomRange:
		if r := cfg.CustomRange.Start; r != nil && d.Before(r.StartOfDay(now.Location())) {
			return false
		}
		if r := cfg.CustomRange.End; r != nil && d.After(r.EndOfDay(now.Location())) {
			return false
		}
		return true
	default:
		return true
	}
}

func startOfDay(t time.Time) time.Time {
	return DateOf(t).StartOfDay(t.Location())
}

func comparator(sortBy SortBy, now time.Time) func(a, b model.Task) int {
	var key func(a, b model.Task) int
	switch sortBy {
	case SortDeadline:
		key = func(a, b model.Task) int {
			return deadlineOrEpoch(a).Compare(deadlineOrEpoch(b))
		}
	case SortPriority:
		key = func(a, b model.Task) int {
			return cmp.Compare(priorityWeight(b.Priority), priorityWeight(a.Priority))
		}
	case SortSmartMix:
		key = func(a, b model.Task) int {
			return cmp.Compare(smartMixScore(b, now), smartMixScore(a, now))
		}
	default:
		key = func(a, b model.Task) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	}

	return func(a, b model.Task) int {
		if a.IsCompleted != b.IsCompleted {
			if a.IsCompleted {
				return 1
			}
			return -1
		}
		return key(a, b)
	}
}

// deadlineOrEpoch は期限未設定をUnixエポックとして扱う。
func deadlineOrEpoch(t model.Task) time.Time {
	if t.Deadline == nil {
		return time.Unix(0, 0)
	}
	return *t.Deadline
}

// priorityWeight は未定義の優先度を0とする。
func priorityWeight(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 3
	case model.PriorityMedium:
		return 2
	case model.PriorityLow:
		return 1
	default:
		return 0
	}
}

// smartMixScore は優先度と期限の近さを合成した点数。
// 期限未設定はエポック扱いのため期限切れの加点を受ける。
func smartMixScore(t model.Task, now time.Time) int {
	score := 0
	switch t.Priority {
	case model.PriorityHigh:
		score += 50
	case model.PriorityMedium:
		score += 30
	case model.PriorityLow:
		score += 10
	}

	until := deadlineOrEpoch(t).Sub(now)
	switch {
	case until < 0:
		score += 100
	case until < 24*time.Hour:
		score += 40
	}
	return score
}
