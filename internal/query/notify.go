package query

import (
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// UpcomingWindow は期限が近いとみなす範囲。
const UpcomingWindow = 24 * time.Hour

// UpcomingDeadlines は期限がnowより後かつUpcomingWindow未満の未完了タスクを返す。
// 通知用であり、表示中の一覧には影響しない。
func UpcomingDeadlines(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.IsCompleted || t.Deadline == nil {
			continue
		}
		until := t.Deadline.Sub(now)
		if until > 0 && until < UpcomingWindow {
			out = append(out, t)
		}
	}
	return out
}
