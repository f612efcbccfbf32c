package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"plan-chat-backend/internal/handlers"
	"plan-chat-backend/internal/middleware"
	"plan-chat-backend/internal/websocket"
)

func New(
	auth *middleware.HeaderAuth,
	limiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// ──── WebSocket (authenticates via ?user=) ────
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(middleware.OnlyMethods(limiter.Middleware, http.MethodPost))

			// ──── Chat Routes ────
			r.Route("/chats", func(r chi.Router) {
				r.Get("/", chatHandler.List)
				r.Post("/", chatHandler.Create)
				r.Get("/{id}", chatHandler.Get)
				r.Delete("/{id}", chatHandler.Delete)
				r.Get("/{id}/messages", chatHandler.ListMessages)
				r.Post("/{id}/messages", chatHandler.SendMessage)
			})

			// ──── Model Routes ────
			r.Get("/models", chatHandler.ListModels)
		})
	})

	return r
}
