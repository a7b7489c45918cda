package client

import (
	"context"

	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/query"
)

// Notifier は期限が近いタスクをユーザーに知らせる。
type Notifier interface {
	NotifyUpcoming(count int)
}

// NotifierFunc は関数をNotifierとして使うためのアダプター。
type NotifierFunc func(count int)

func (f NotifierFunc) NotifyUpcoming(count int) { f(count) }

// Refresh はタスク一覧を取得し、期限が近い未完了タスクがあれば一度だけ通知する。
// 返す一覧は取得したままで、通知の有無に影響されない。
func (c *Client) Refresh(ctx context.Context, s Session, n Notifier) ([]model.Task, error) {
	tasks, err := c.ListTasks(ctx, s)
	if err != nil {
		return nil, err
	}
	if upcoming := query.UpcomingDeadlines(tasks, c.now()); len(upcoming) > 0 && n != nil {
		n.NotifyUpcoming(len(upcoming))
	}
	return tasks, nil
}
