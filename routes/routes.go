package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/debate-tournament/handlers"
	"github.com/Dosada05/debate-tournament/middleware"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	scheduleHandler *handlers.ScheduleHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// The websocket stays outside the timeout middleware.
	router.Get("/ws", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/pairings", scheduleHandler.GetPairings)
			r.Get("/judges", scheduleHandler.GetJudges)
			r.Get("/rounds/{round}/rooms/{room}", scheduleHandler.GetRoomData)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(opts.JWTSecret))
				r.Use(middleware.Authorize(middleware.RoleAdmin))
				r.Post("/regenerate", scheduleHandler.Regenerate)
			})
		})

		r.Route("/teams/{team}", func(r chi.Router) {
			r.Get("/records", matchHandler.ListRecords)
			r.Get("/players", matchHandler.ValidPlayers)
			r.Get("/weight", matchHandler.Weight)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(opts.JWTSecret))
				r.Use(middleware.Authorize(middleware.RoleAdmin))
				r.Post("/records", matchHandler.AppendRecord)
			})
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/questions", matchHandler.OptionalQuestions)
			r.Post("/score", matchHandler.Score)
		})
	})
}
