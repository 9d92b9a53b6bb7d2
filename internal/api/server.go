package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/yield-scanner/internal/config"
	"github.com/yield-scanner/internal/logging"
)

// Server is the HTTP server exposing the scanner's REST surface under /api.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logging.Logger
}

// Handlers groups the endpoint handlers the server routes to.
type Handlers struct {
	Agents     *AgentHandler
	Strategies *StrategyHandler
	Catalog    *CatalogHandler
}

// NewServer builds the router and wires middleware and handlers.
func NewServer(cfg *config.Config, handlers *Handlers, logger *logging.Logger) *Server {
	router := mux.NewRouter()

	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)
	router.Use(CompressionMiddleware)
	router.Use(NewRateLimiter(&cfg.RateLimit).Middleware)

	router.HandleFunc("/health", handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Agent configurations
	api.HandleFunc("/agent-configurations", handlers.Agents.CreateConfiguration).Methods("POST")
	api.HandleFunc("/agent-configurations", handlers.Agents.ListConfigurations).Methods("GET")
	api.HandleFunc("/agent-configurations/{id}", handlers.Agents.GetConfiguration).Methods("GET")
	api.HandleFunc("/agent-configurations/{id}", handlers.Agents.UpdateConfiguration).Methods("PUT")

	// Agent instances and scan dispatch
	api.HandleFunc("/agent-instances", handlers.Agents.CreateInstance).Methods("POST")
	api.HandleFunc("/agent-instances", handlers.Agents.ListInstances).Methods("GET")
	api.HandleFunc("/agent-instances/{id}", handlers.Agents.GetInstance).Methods("GET")
	api.HandleFunc("/agent-instances/{id}", handlers.Agents.UpdateInstance).Methods("PUT")
	api.HandleFunc("/agent-instances/{id}", handlers.Agents.DeleteInstance).Methods("DELETE")
	api.HandleFunc("/agent-instances/{id}/scan", handlers.Agents.StartScan).Methods("POST")
	api.HandleFunc("/parallel-scan", handlers.Agents.ParallelScan).Methods("POST")

	// Yield strategies and executions
	api.HandleFunc("/yield-strategies", handlers.Strategies.CreateStrategy).Methods("POST")
	api.HandleFunc("/yield-strategies", handlers.Strategies.ListStrategies).Methods("GET")
	api.HandleFunc("/yield-strategies/{id}", handlers.Strategies.GetStrategy).Methods("GET")
	api.HandleFunc("/yield-strategies/{id}", handlers.Strategies.UpdateStrategy).Methods("PUT")
	api.HandleFunc("/yield-strategies/{id}", handlers.Strategies.DeleteStrategy).Methods("DELETE")
	api.HandleFunc("/yield-strategies/{id}/execute", handlers.Strategies.ExecuteStrategy).Methods("POST")
	api.HandleFunc("/yield-strategies/{id}/executions", handlers.Strategies.ListStrategyExecutions).Methods("GET")
	api.HandleFunc("/strategy-executions", handlers.Strategies.ListAllExecutions).Methods("GET")

	// Catalog and activity log
	api.HandleFunc("/protocols", handlers.Catalog.ListProtocols).Methods("GET")
	api.HandleFunc("/networks", handlers.Catalog.ListNetworks).Methods("GET")
	api.HandleFunc("/opportunities", handlers.Catalog.ListOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/{id}", handlers.Catalog.GetOpportunity).Methods("GET")
	api.HandleFunc("/activities", handlers.Catalog.ListActivities).Methods("GET")

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		router: router,
		logger: logger,
	}
}

// Router exposes the underlying router. Used by tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
