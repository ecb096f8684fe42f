// Package api serves the controller's REST and websocket surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/database/repositories"
	"github.com/hearthd/hearthd/internal/services/pubsub"
	"github.com/hearthd/hearthd/internal/services/schedule"
	"github.com/hearthd/hearthd/internal/services/transport"
)

// Server wires the schedule engine and its collaborators to HTTP.
type Server struct {
	cfg       *config.Config
	schedule  *schedule.Service
	sensors   *repositories.SensorRepository
	gateways  *repositories.GatewayRepository
	nodes     *repositories.NodeRepository
	publisher transport.Publisher
	events    *pubsub.PubSub
	upgrader  websocket.Upgrader
	now       func() time.Time
}

// NewServer creates an API server.
func NewServer(db *gorm.DB, cfg *config.Config, scheduleSvc *schedule.Service, publisher transport.Publisher, events *pubsub.PubSub) *Server {
	return &Server{
		cfg:       cfg,
		schedule:  scheduleSvc,
		sensors:   repositories.NewSensorRepository(db),
		gateways:  repositories.NewGatewayRepository(db),
		nodes:     repositories.NewNodeRepository(db),
		publisher: publisher,
		events:    events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
	}
}

// Router builds the HTTP handler with the full middleware stack.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin, "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            s.cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", s.handleHealth)

	router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/registry", s.handleRegistry)
		r.Get("/programs", s.handlePrograms)
		r.Get("/program/{sensor}", s.handleGetProgram)
		r.Put("/program/{sensor}", s.handlePutProgram)
		r.Post("/sensors/{sensor}/value", s.handleSetSensorValue)
		r.Post("/triggers/once", s.handleCreateOnce)
		r.Delete("/triggers/once", s.handleDeleteOnce)
		r.Post("/triggers/replace", s.handleCreateReplace)
		r.Post("/triggers/switch", s.handleSwitchTriggers)
		r.Post("/triggers/retime", s.handleRetimeTrigger)
	})

	router.Get("/ws", s.handleWebsocket)

	return router
}
