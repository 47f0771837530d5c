package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"domino-hall/internal/config"
	"domino-hall/internal/matchmaking"
	"domino-hall/internal/session"
	"domino-hall/internal/tournament"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Deps are the services the router exposes. History, Health and Push are
// optional.
type Deps struct {
	Registry    *session.Registry
	Matchmaking *matchmaking.Scheduler
	Tournaments *tournament.Scheduler
	History     HistoryReader
	Health      func(ctx context.Context) error
	Push        http.Handler
}

func NewRouter(deps Deps, cfg config.ServerConfig) *chi.Mux {
	games := NewGameHandlers(deps.Registry)
	queue := NewMatchmakingHandlers(deps.Matchmaking)
	cups := NewTournamentHandlers(deps.Tournaments)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(MetricsMiddleware)

	r.With(APILogMiddleware()).Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", promhttp.Handler())
	if deps.Push != nil {
		r.With(APILogMiddleware()).Get("/ws/games/{game_id}", deps.Push.ServeHTTP)
	}

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(chimw.Timeout(timeout))

		r.Route("/games", func(r chi.Router) {
			r.Get("/", games.List())
			r.Post("/", games.Create())
			r.Route("/{game_id}", func(r chi.Router) {
				r.Get("/", games.PublicState())
				r.Get("/players/{player_id}", games.PlayerState())
				r.Post("/join", games.Join())
				r.Post("/leave", games.Leave())
				r.Post("/ready", games.Ready())
				r.Post("/start", games.Start())
				r.Post("/moves", games.Move())
				r.Post("/draw", games.Draw())
				r.Post("/pass", games.Pass())
				r.Post("/chat", games.Chat())
			})
		})

		r.Route("/matchmaking/queue", func(r chi.Router) {
			r.Get("/", queue.Snapshot())
			r.Post("/", queue.Enqueue())
			r.Get("/{player_id}", queue.Position())
			r.Delete("/{player_id}", queue.Dequeue())
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", cups.List())
			r.Post("/", cups.Create())
			r.Post("/results", cups.Report())
			r.Route("/{tournament_id}", func(r chi.Router) {
				r.Get("/", cups.Get())
				r.Post("/participants", cups.Register())
				r.Delete("/participants/{player_id}", cups.Unregister())
				r.Post("/start", cups.Start())
				r.Post("/resume", cups.Resume())
				r.Post("/cancel", cups.Cancel())
			})
		})

		if deps.History != nil {
			hist := NewHistoryHandlers(deps.History)
			r.Get("/history/games/{game_id}", hist.Game())
			r.Get("/history/players/{player_id}/games", hist.PlayerGames())
			r.Get("/history/tournaments/{tournament_id}", hist.Tournament())
		}
	})
	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 48)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
