package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mentwork/internal/config"
	"github.com/hitoshi/mentwork/internal/connection"
	"github.com/hitoshi/mentwork/internal/database"
	"github.com/hitoshi/mentwork/internal/handler"
	"github.com/hitoshi/mentwork/internal/logger"
	"github.com/hitoshi/mentwork/internal/matching"
	"github.com/hitoshi/mentwork/internal/mentee"
	"github.com/hitoshi/mentwork/internal/mentor"
	"github.com/hitoshi/mentwork/internal/messaging"
	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/program"
	"github.com/hitoshi/mentwork/internal/registration"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/security"
	"github.com/hitoshi/mentwork/internal/webhook"
	"github.com/hitoshi/mentwork/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから設定を読み込み、設定のログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := new(slog.LevelVar)
	logger.SetupDefault(w, level)

	// 2. 既定値・設定ファイル・環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	level.Set(lvl)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv(config.EnvPrefix + "SERVER_PORT")
		if port == "" {
			port = config.Default().ServerPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("environment", cfg.Environment),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// webhookEndpoints は設定から送信先を組み立てる。
// 本番環境以外では未設定の送信先をローカルのワークフローエンジンで補完する。
func webhookEndpoints(cfg *config.Config) webhook.Endpoints {
	endpoints := webhook.Endpoints{
		NewMentor:     cfg.WebhookNewMentorURL,
		NewMentee:     cfg.WebhookNewMenteeURL,
		NewProgram:    cfg.WebhookNewProgramURL,
		NewConnection: cfg.WebhookNewConnectionURL,
		Matching:      cfg.WebhookMatchingURL,
	}
	if !cfg.IsProduction() {
		endpoints = endpoints.WithDefaults(webhook.DevelopmentEndpoints())
	}
	return endpoints
}

// newDispatcher は送信先を検証し、Webhookディスパッチャーを生成する。
// mirrorがnilの場合はNATSへのミラー配信を行わない。
func newDispatcher(cfg *config.Config, collector metrics.MetricsCollector, mirror webhook.Mirror) (*webhook.Dispatcher, error) {
	endpoints := webhookEndpoints(cfg)

	guard := security.NewWebhookGuard(cfg.WebhookSSRFProtection)
	if err := endpoints.Validate(guard.ValidateEndpoint); err != nil {
		return nil, err
	}

	client := guard.NewClient(cfg.WebhookTimeout, security.EndpointPorts(endpoints.All()...)...)

	opts := []webhook.Option{
		webhook.WithMaxResponseSize(cfg.WebhookMaxResponseSize),
		webhook.WithMetrics(collector),
	}
	if mirror != nil {
		opts = append(opts, webhook.WithMirror(mirror))
	}

	return webhook.NewDispatcher(client, endpoints, slog.Default(), opts...), nil
}

// openPublisher はNATSのURLが設定されていればパブリッシャーを生成する。
// 接続できない場合はミラー配信なしで継続する。
func openPublisher(cfg *config.Config) *messaging.Publisher {
	if cfg.NATSURL == "" {
		return nil
	}
	pub, err := messaging.NewPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, slog.Default())
	if err != nil {
		slog.Warn("NATSに接続できないためミラー配信を無効にします",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return pub
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクスとミラー配信
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	var mirror webhook.Mirror
	if pub := openPublisher(cfg); pub != nil {
		defer pub.Close()
		mirror = pub
	}

	// 3. Webhookディスパッチャーの初期化
	dispatcher, err := newDispatcher(cfg, collector, mirror)
	if err != nil {
		return fmt.Errorf("invalid webhook configuration: %w", err)
	}

	// 4. リポジトリの初期化
	mentorRepo := repository.NewPostgresMentorRepo(db)
	menteeRepo := repository.NewPostgresMenteeRepo(db)
	programRepo := repository.NewPostgresProgramRepo(db)
	connRepo := repository.NewPostgresConnectionRepo(db)
	sagaRepo := repository.NewPostgresSagaRepo(db)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()

	mentorService := mentor.NewService(mentorRepo, dispatcher, sanitizer)
	menteeService := mentee.NewService(menteeRepo, dispatcher, sanitizer)
	programService := program.NewService(programRepo, mentorRepo, dispatcher, sanitizer)
	connService := connection.NewService(mentorRepo, menteeRepo, connRepo, dispatcher, slog.Default())

	guard := registration.NewGuard(menteeRepo, collector)
	orchestrator := matching.NewOrchestrator(guard, dispatcher, collector, slog.Default())
	saga := connection.NewSaga(dispatcher, menteeService, connService, sagaRepo, collector, slog.Default())

	// 6. ルーターの構築（レート制限はreq/min単位の設定から生成する）
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitMatching))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Gatherer:          registry,
		HealthChecker:     db,

		MentorService:     mentorService,
		MenteeService:     menteeService,
		ProgramService:    programService,
		ConnectionService: connService,

		MatchingService: orchestrator,
		SagaService:     saga,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	// マッチングはワークフローエンジンの応答を待つため、書き込みタイムアウトはWebhookより長くとる
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WebhookTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		slog.Warn("送信中のWebhook通知を待たずに終了します", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、孤児メンティーのクリーンアップを定期実行する。
// メトリクスは /metrics で公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. メトリクス
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), collector)
	cleanupJob.Retention = cfg.OrphanRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("orphan_retention", cfg.OrphanRetention),
	)

	runCleanupLoop(ctx, cleanupJob, cfg.CleanupInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// cleanupRunner はクリーンアップジョブの実行インターフェース。
type cleanupRunner interface {
	Run(ctx context.Context) error
}

// runCleanupLoop は起動直後に1回、その後はintervalごとにジョブを実行する。
// ctxがキャンセルされるまでブロックする。
func runCleanupLoop(ctx context.Context, job cleanupRunner, interval time.Duration) {
	if err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	v, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(v.Version)),
	)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
