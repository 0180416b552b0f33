package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/contest-system/handlers"
	"github.com/Dosada05/contest-system/middleware"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	JWTSecret      []byte
	DriverKeyHash  string
	AllowedOrigins []string
	OutcomeLimiter *middleware.RateLimiter
	Gatherer       prometheus.Gatherer
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	contestHandler *handlers.ContestHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.DriverKeyHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Get("/ws/contests/{contestID}", webSocketHandler.ServeWs)

	router.Route("/contests", func(r chi.Router) {
		r.With(chiMiddleware.Timeout(15*time.Second)).Group(func(r chi.Router) {
			r.Get("/", contestHandler.ListHandler)
			r.Get("/{contestID}", contestHandler.GetHandler)
			r.Get("/{contestID}/rounds/current", contestHandler.CurrentRoundHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.DriverKey(opts.DriverKeyHash))
			r.Post("/{contestID}/start", contestHandler.StartHandler)
			r.Post("/{contestID}/advance", contestHandler.AdvanceHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		if opts.OutcomeLimiter != nil {
			r.Use(opts.OutcomeLimiter.Handler)
		}
		r.Use(middleware.Authenticate(opts.JWTSecret))
		r.Use(middleware.Authorize(middleware.RoleTally))
		r.Post("/{matchID}/winner", matchHandler.RecordWinnerHandler)
	})
}
