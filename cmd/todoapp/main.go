// Command todoapp はタスク管理APIサーバーとそのCLIクライアント。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（既定）
//	migrate      マイグレーションを実行する（up/down）
//	healthcheck  起動中のサーバーの/healthを確認する
//	register, login, logout, tasks, add, done, rm
//	             APIサーバーを呼び出すクライアントコマンド
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/todoapp/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("todoapp failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
