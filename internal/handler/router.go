package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/zhouzirui/mentor-relay/backend/internal/handler/auth"
	"github.com/zhouzirui/mentor-relay/backend/internal/handler/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/handler/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/handler/stream"
	"github.com/zhouzirui/mentor-relay/backend/internal/handler/ws"
	personaModel "github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	chatService "github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	speechService "github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Personas       personaModel.Store
	Chat           *chatService.Service
	AI             chat.StatusReporter
	Auth           auth.Authenticator
	Speech         speechService.Capability
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(newCORS(deps.AllowedOrigins).Handler)

	personaHandler := persona.New(deps.Personas)
	authHandler := auth.New(deps.Auth, deps.Chat.Forget)
	chatHandler := chat.New(deps.Chat, deps.AI, deps.Speech)
	streamHandler := stream.New(deps.Chat, deps.Personas)
	wsHandler := ws.New(deps.Chat, deps.Personas, deps.Speech)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		authHandler.RegisterRoutes(api)
		api.Get("/status", chatHandler.HandleStatus)

		api.Group(func(private chi.Router) {
			private.Use(auth.RequireSession(deps.Auth))

			chatHandler.RegisterRoutes(private)
			streamHandler.RegisterRoutes(private)
			wsHandler.RegisterRoutes(private)
		})
	})

	return r
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}
