package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/todoapp/internal/client"
	"github.com/hitoshi/todoapp/internal/config"
	"github.com/hitoshi/todoapp/internal/logger"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/query"
)

// errNotLoggedIn は保存済みセッションがない状態でタスク操作を行った場合のエラー。
var errNotLoggedIn = errors.New("not logged in; run `todoapp login` first")

// clientEnv はクライアントコマンドの実行に必要な依存をまとめたもの。
type clientEnv struct {
	api    *client.Client
	store  client.SessionStore
	holder *client.Holder
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

// runClient はAPIサーバーを呼び出すクライアントコマンドを実行する。
func runClient(ctx context.Context, stdout, stderr io.Writer, cmd Command, args []string) error {
	cc := config.LoadClient()
	log := logger.SetupDefault(stderr, logger.ParseLevel(cc.LogLevel))

	api := client.NewClient(cc.APIURL, &http.Client{Timeout: 15 * time.Second}, log)
	store := client.NewFileSessionStore(cc.SessionFile)
	env := &clientEnv{
		api:    api,
		store:  store,
		holder: client.NewHolder(api, store),
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}

	if _, err := env.holder.Restore(); err != nil {
		log.Warn("failed to restore session", slog.String("error", err.Error()))
	}

	switch cmd {
	case CommandRegister:
		return env.register(ctx, args)
	case CommandLogin:
		return env.login(ctx, args)
	case CommandLogout:
		return env.logout(ctx)
	case CommandTasks:
		return env.tasks(ctx, args)
	case CommandAdd:
		return env.add(ctx, args)
	case CommandDone:
		return env.done(ctx, args)
	case CommandRemove:
		return env.remove(ctx, args)
	default:
		return fmt.Errorf("unknown client command: %s", cmd)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func credentialFlags(fs *flag.FlagSet) (email, password *string) {
	email = fs.String("email", "", "メールアドレス")
	password = fs.String("password", "", "パスワード")
	return email, password
}

func (e *clientEnv) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register", e.stderr)
	email, password := credentialFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := e.api.Register(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "User registered successfully")
	return nil
}

func (e *clientEnv) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login", e.stderr)
	email, password := credentialFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := e.holder.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Logged in as %s\n", s.Email)
	return nil
}

func (e *clientEnv) logout(ctx context.Context) error {
	if e.holder.Current().IsZero() {
		fmt.Fprintln(e.stdout, "Not logged in")
		return nil
	}
	if err := e.holder.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Logged out")
	return nil
}

// session は現在のセッションを返す。未ログインの場合はerrNotLoggedIn。
func (e *clientEnv) session() (client.Session, error) {
	s := e.holder.Current()
	if s.IsZero() {
		return client.Session{}, errNotLoggedIn
	}
	return s, nil
}

// checkAuth はトークンが拒否された場合に保存済みセッションを破棄する。
func (e *clientEnv) checkAuth(err error) error {
	if client.IsAuthError(err) {
		if clearErr := e.store.Clear(); clearErr != nil {
			slog.Warn("failed to clear session", slog.String("error", clearErr.Error()))
		}
		return fmt.Errorf("session is no longer valid; run `todoapp login` again: %w", err)
	}
	return err
}

func (e *clientEnv) tasks(ctx context.Context, args []string) error {
	fs := newFlagSet("tasks", e.stderr)
	category := fs.String("category", query.CategoryAll, "カテゴリで絞り込む（All で全件）")
	filter := fs.String("filter", "anytime", "期限で絞り込む: anytime, today, this-week, overdue, custom")
	sortBy := fs.String("sort", "default", "並び順: default, smart-mix, deadline, priority")
	from := fs.String("from", "", "custom の開始日 (YYYY-MM-DD)")
	to := fs.String("to", "", "custom の終了日 (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := buildQueryConfig(*category, *filter, *sortBy, *from, *to)
	if err != nil {
		return err
	}

	s, err := e.session()
	if err != nil {
		return err
	}

	notifier := client.NotifierFunc(func(count int) {
		fmt.Fprintf(e.stderr, "Reminder: %d task(s) due within 24 hours\n", count)
	})
	all, err := e.api.Refresh(ctx, s, notifier)
	if err != nil {
		return e.checkAuth(err)
	}

	now := e.now()
	renderTasks(e.stdout, query.Apply(all, cfg, now), now)
	return nil
}

// buildQueryConfig はフラグの値から一覧の表示条件を組み立てる。
func buildQueryConfig(category, filter, sortBy, from, to string) (query.Config, error) {
	tf, err := query.ParseTimeFilter(filter)
	if err != nil {
		return query.Config{}, err
	}
	sb, err := query.ParseSortBy(sortBy)
	if err != nil {
		return query.Config{}, err
	}

	cfg := query.Config{Category: category, TimeFilter: tf, SortBy: sb}
	if from != "" {
		d, err := query.ParseDate(from)
		if err != nil {
			return query.Config{}, fmt.Errorf("invalid -from: %w", err)
		}
		cfg.CustomRange.Start = &d
	}
	if to != "" {
		d, err := query.ParseDate(to)
		if err != nil {
			return query.Config{}, fmt.Errorf("invalid -to: %w", err)
		}
		cfg.CustomRange.End = &d
	}
	return cfg, nil
}

// renderTasks は一覧を表形式で出力する。期限切れの未完了タスクには!を付ける。
func renderTasks(w io.Writer, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tPRIORITY\tCATEGORY\tDEADLINE")
	for _, t := range tasks {
		mark := " "
		switch {
		case t.IsCompleted:
			mark = "x"
		case t.Deadline != nil && t.Deadline.Before(now):
			mark = "!"
		}
		deadline := "-"
		if t.Deadline != nil {
			deadline = t.Deadline.In(now.Location()).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, t.ID, t.Title, t.Priority, t.Category, deadline)
	}
	tw.Flush()
}

func (e *clientEnv) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add", e.stderr)
	title := fs.String("title", "", "タイトル（省略時は残りの引数）")
	description := fs.String("description", "", "説明")
	deadline := fs.String("deadline", "", "期限 (YYYY-MM-DD または RFC 3339)")
	priority := fs.String("priority", "", "優先度: Low, Medium, High")
	category := fs.String("category", "", "カテゴリ: "+strings.Join(model.Categories, ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		*title = strings.Join(fs.Args(), " ")
	}

	input := model.TaskInput{
		Title:       *title,
		Description: *description,
		Priority:    model.Priority(*priority),
		Category:    *category,
	}
	if *deadline != "" {
		d, err := parseDeadlineFlag(*deadline, e.now().Location())
		if err != nil {
			return err
		}
		input.Deadline = &d
	}

	s, err := e.session()
	if err != nil {
		return err
	}
	created, err := e.api.CreateTask(ctx, s, input)
	if err != nil {
		return e.checkAuth(err)
	}
	fmt.Fprintf(e.stdout, "Created %s\n", created.ID)
	return nil
}

// parseDeadlineFlag は期限を解析する。日付のみの場合はlocの0時とする。
func parseDeadlineFlag(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := query.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return d.StartOfDay(loc), nil
}

func (e *clientEnv) done(ctx context.Context, args []string) error {
	fs := newFlagSet("done", e.stderr)
	undo := fs.Bool("undo", false, "未完了に戻す")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: todoapp done [-undo] <task-id>")
	}

	s, err := e.session()
	if err != nil {
		return err
	}
	id := fs.Arg(0)
	if _, err := e.api.SetCompleted(ctx, s, id, !*undo); err != nil {
		if errors.Is(err, client.ErrTaskNotFound) {
			return fmt.Errorf("task %s not found", id)
		}
		return e.checkAuth(err)
	}
	if *undo {
		fmt.Fprintf(e.stdout, "Reopened %s\n", id)
	} else {
		fmt.Fprintf(e.stdout, "Completed %s\n", id)
	}
	return nil
}

func (e *clientEnv) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: todoapp rm <task-id>")
	}

	s, err := e.session()
	if err != nil {
		return err
	}
	if err := e.api.DeleteTask(ctx, s, args[0]); err != nil {
		return e.checkAuth(err)
	}
	fmt.Fprintf(e.stdout, "Deleted %s\n", args[0])
	return nil
}
