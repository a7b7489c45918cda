package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// 以下はAPIサーバーを呼び出すクライアントコマンド。
	CommandRegister Command = "register"
	CommandLogin    Command = "login"
	CommandLogout   Command = "logout"
	CommandTasks    Command = "tasks"
	CommandAdd      Command = "add"
	CommandDone     Command = "done"
	CommandRemove   Command = "rm"
)

var commands = map[string]Command{
	"serve":       CommandServe,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
	"register":    CommandRegister,
	"login":       CommandLogin,
	"logout":      CommandLogout,
	"tasks":       CommandTasks,
	"add":         CommandAdd,
	"done":        CommandDone,
	"rm":          CommandRemove,
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// IsClientCommand はコマンドがAPIクライアントとして動作するかを返す。
func (c Command) IsClientCommand() bool {
	switch c {
	case CommandRegister, CommandLogin, CommandLogout, CommandTasks, CommandAdd, CommandDone, CommandRemove:
		return true
	default:
		return false
	}
}
