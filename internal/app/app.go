package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/config"
	"github.com/hitoshi/todoapp/internal/database"
	"github.com/hitoshi/todoapp/internal/handler"
	"github.com/hitoshi/todoapp/internal/logger"
	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/repository"
	"github.com/hitoshi/todoapp/internal/security"
	"github.com/hitoshi/todoapp/internal/task"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	return run(w, os.Stderr, args)
}

func run(stdout, stderr io.Writer, args []string) error {
	cmd := ParseCommand(args)

	var rest []string
	if len(args) > 0 {
		rest = args[1:]
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// クライアントコマンドはサーバー設定を必要としない
	if cmd.IsClientCommand() {
		return runClient(context.Background(), stdout, stderr, cmd, rest)
	}

	cfg, err := Init(stdout)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. 失効ストア（REDIS_URL未設定時は失効なし）
	revoker, rdb, err := newRevoker(cfg)
	if err != nil {
		db.Close()
		return err
	}

	// 3. サービスの構築
	server, err := newServer(cfg, db, revoker)
	if err != nil {
		db.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 4. グレースフルシャットダウン
	operations := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
		"database": func(ctx context.Context) error {
			return db.Close()
		},
	}
	if rdb != nil {
		operations["redis"] = func(ctx context.Context) error {
			return rdb.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, operations)

	select {
	case err := <-serveErr:
		slog.Error("server listen error", slog.String("error", err.Error()))
		db.Close()
		if rdb != nil {
			rdb.Close()
		}
		return fmt.Errorf("server listen error: %w", err)
	case code := <-wait:
		if code != 0 {
			return fmt.Errorf("graceful shutdown finished with exit code %d", code)
		}
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newServer は依存関係をワイヤリングしたhttp.Serverを返す。
func newServer(cfg *config.Config, db *sql.DB, revoker auth.TokenRevoker) (*http.Server, error) {
	// リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)

	// ドメインサービスの初期化
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.TokenIssuer,
	})
	authService := auth.NewService(userRepo, auth.NewBcryptHasher(cfg.BcryptCost), tokens, revoker)
	taskService := task.NewService(taskRepo, security.NewMarkupDetector())

	// メトリクス
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewDBStatsCollector(db, "todoapp")); err != nil {
		return nil, fmt.Errorf("failed to register db stats collector: %w", err)
	}
	collector := metrics.NewCollector(reg)

	router := handler.NewRouter(&handler.RouterDeps{
		Verifier:          authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AuthService:       authService,
		TaskService:       taskService,
		Logger:            slog.Default(),
		HealthChecker:     db,
		Metrics:           collector,
		Gatherer:          reg,
	})

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// newRevoker はREDIS_URLが設定されていればRedisの失効ストアを返す。
// 未設定の場合はログアウトしてもトークンが期限まで有効なままになる。
func newRevoker(cfg *config.Config) (auth.TokenRevoker, *redis.Client, error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set; logout will not revoke tokens")
		return auth.NoopRevoker{}, nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))
	return auth.NewRedisRevocationStore(rdb, ""), rdb, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupで未適用分をすべて適用し、downで全て取り消す。
func runMigrate(cfg *config.Config, args []string) error {
	dir, err := database.ParseDirection(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, dir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
