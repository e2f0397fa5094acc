package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/taskpilot/taskpilot/internal/activity"
	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/board"
	"github.com/taskpilot/taskpilot/internal/chat"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/event"
	"github.com/taskpilot/taskpilot/internal/pushnotification"
	"github.com/taskpilot/taskpilot/internal/stats"
	"github.com/taskpilot/taskpilot/internal/task"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/clog"
)

type Server struct {
	server         *http.Server
	env            *config.Env
	boardServer    *board.Server
	taskServer     *task.Server
	agentServer    *agent.Server
	chatServer     *chat.Server
	activityServer *activity.Server
	statsServer    *stats.Server
	eventServer    *event.Server
	pushServer     *pushnotification.Server
}

func NewServer(
	env *config.Env,
	boardServer *board.Server,
	taskServer *task.Server,
	agentServer *agent.Server,
	chatServer *chat.Server,
	activityServer *activity.Server,
	statsServer *stats.Server,
	eventServer *event.Server,
	pushServer *pushnotification.Server,
) *Server {
	return &Server{
		env:            env,
		boardServer:    boardServer,
		taskServer:     taskServer,
		agentServer:    agentServer,
		chatServer:     chatServer,
		activityServer: activityServer,
		statsServer:    statsServer,
		eventServer:    eventServer,
		pushServer:     pushServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests via http.Server.BaseContext, so
// cancelling it (shutdown signal) also ends every open SSE stream.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		// SSE endpoints write the stream themselves; everything else goes
		// through the JSON response middleware.
		r.Group(func(r chi.Router) {
			r.Use(clog.SlogChiMiddleware())
			r.Get("/tasks/{taskID}/stream", s.taskServer.StreamTask)
			r.Get("/events", s.eventServer.StreamEvents)
		})

		r.Group(func(r chi.Router) {
			r.Use(
				clog.SlogChiMiddleware(),
				cerr.NewJSONResponseChiMiddleware(),
			)

			r.Get("/agents", s.agentServer.ListAgents)
			r.Get("/agents/{agentID}/workload", s.agentServer.GetWorkload)

			r.Get("/boards", s.boardServer.ListBoards)
			r.Post("/boards", s.boardServer.CreateBoard)
			r.Get("/boards/{boardID}", s.boardServer.GetBoard)
			r.Put("/boards/{boardID}", s.boardServer.UpdateBoard)
			r.Delete("/boards/{boardID}", s.boardServer.DeleteBoard)
			r.Get("/boards/{boardID}/chat", s.chatServer.ListMessages)
			r.Post("/boards/{boardID}/chat", s.chatServer.PostMessage)
			r.Delete("/chat/{messageID}", s.chatServer.DeleteMessage)

			r.Get("/tasks", s.taskServer.ListTasks)
			r.Post("/tasks", s.taskServer.CreateTask)
			r.Get("/tasks/{taskID}", s.taskServer.GetTask)
			r.Put("/tasks/{taskID}", s.taskServer.UpdateTask)
			r.Delete("/tasks/{taskID}", s.taskServer.DeleteTask)
			r.Post("/tasks/{taskID}/move", s.taskServer.MoveTask)
			r.Get("/tasks/{taskID}/log", s.taskServer.GetProcessLog)

			r.Get("/activities", s.activityServer.ListActivities)
			r.Get("/stats", s.statsServer.GetStats)

			r.Get("/push/vapid-key", s.pushServer.GetVAPIDKey)
			r.Post("/push/subscriptions", s.pushServer.Subscribe)
			r.Delete("/push/subscriptions/{subscriptionID}", s.pushServer.Unsubscribe)

			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for health endpoints.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
