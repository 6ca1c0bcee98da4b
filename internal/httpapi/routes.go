package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kmacleod/hockey-draft-backend/internal/hub"
	"github.com/kmacleod/hockey-draft-backend/internal/scoring"
	"github.com/kmacleod/hockey-draft-backend/internal/ws"
)

type Deps struct {
	Hub            *hub.Hub
	Aggregator     *scoring.Aggregator
	WS             ws.Deps
	AllowedOrigins []string
	Log            *zap.Logger
}

func SetupRoutes(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(deps.WS))

	r.Route("/api", func(r chi.Router) {
		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", CreateDraft(deps.Hub))
			r.Get("/{draftID}", GetDraft(deps.Hub))
			r.Post("/{draftID}/start", StartDraft(deps.Hub))
			r.Post("/{draftID}/picks", MakePick(deps.Hub))
		})
		r.Route("/leagues/{leagueID}", func(r chi.Router) {
			r.Get("/scoring", ScoringSummary(deps.Aggregator))
			r.Post("/scoring/events", IngestScoringEvent(deps.Aggregator))
			r.Post("/scoring/reset", ResetScoringPeriod(deps.Aggregator))
			r.Post("/rosters", RegisterRoster(deps.Aggregator))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()))
		})
	}
}
