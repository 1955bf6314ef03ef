package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	// TrustProxyHeaders がtrueの場合のみX-Forwarded-For/X-Real-IPをクライアントIPとして扱う。
	// 信頼できるリバースプロキシの背後で動かす場合に限り有効にする。
	TrustProxyHeaders bool
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	HealthChecker     HealthChecker

	// エンティティ
	MentorService     MentorServiceInterface
	MenteeService     MenteeServiceInterface
	ProgramService    ProgramServiceInterface
	ConnectionService ConnectionServiceInterface

	// マッチングとワークフロー
	MatchingService MatchingServiceInterface
	SagaService     SagaServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Recovery → Logging → Metrics → CORS → SecurityHeaders
//
// レート制限はマッチング検索にのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	mentorHandler := NewMentorHandler(deps.MentorService)
	menteeHandler := NewMenteeHandler(deps.MenteeService)
	programHandler := NewProgramHandler(deps.ProgramService)
	connHandler := NewConnectionHandler(deps.ConnectionService)
	matchingHandler := NewMatchingHandler(deps.MatchingService, deps.SagaService)

	r.Route("/mentors", func(r chi.Router) {
		r.Post("/register", mentorHandler.Register)
		r.Get("/", mentorHandler.List)
		r.Get("/email/{email}", mentorHandler.GetByEmail)
		r.Get("/id/{id}", mentorHandler.GetByID)
		r.Put("/{id}", mentorHandler.Update)
	})

	r.Route("/mentees", func(r chi.Router) {
		r.Post("/register", menteeHandler.Register)
		r.Get("/", menteeHandler.List)
		r.Get("/email/{email}", menteeHandler.GetByEmail)
		r.Put("/{id}", menteeHandler.Update)
	})

	r.Route("/programs", func(r chi.Router) {
		r.Post("/", programHandler.Create)
		r.Get("/", programHandler.ListAll)
		r.Get("/mentor/{email}", programHandler.ListByMentor)
		r.Put("/{id}", programHandler.Update)
		r.Delete("/{id}", programHandler.Delete)
	})

	r.Route("/connections", func(r chi.Router) {
		r.Post("/", connHandler.Create)
		r.Get("/mentor/{mentorId}", connHandler.ListByMentor)
		r.Get("/mentee/{menteeId}", connHandler.ListByMentee)
		r.Delete("/{id}", connHandler.Delete)
	})

	r.Route("/matching", func(r chi.Router) {
		// POST /matching/find-matches - 外部ワークフローを呼ぶためIP単位で制限する
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.Middleware()).Post("/find-matches", matchingHandler.FindMatches)
		} else {
			r.Post("/find-matches", matchingHandler.FindMatches)
		}
		r.Post("/create-connection", matchingHandler.CreateConnection)
		r.Post("/register-and-connect", matchingHandler.RegisterAndConnect)
	})

	return r
}
