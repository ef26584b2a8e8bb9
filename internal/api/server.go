package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/inkwell-network/inkwell-node/internal/api/middleware"
	"github.com/inkwell-network/inkwell-node/internal/database"
	"github.com/inkwell-network/inkwell-node/internal/payment"
	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// APIServer provides the HTTP REST API for the node
type APIServer struct {
	ctx       context.Context
	cancel    context.CancelFunc
	server    *http.Server
	listener  net.Listener
	port      string
	logger    *utils.LogsManager
	config    *utils.ConfigManager
	dbManager *database.SQLiteManager
	processor *payment.Processor
	startTime time.Time
}

// NewAPIServer creates a new API server instance
func NewAPIServer(
	config *utils.ConfigManager,
	logger *utils.LogsManager,
	dbManager *database.SQLiteManager,
	processor *payment.Processor,
) *APIServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &APIServer{
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		config:    config,
		dbManager: dbManager,
		processor: processor,
		startTime: time.Now(),
	}
}

// Start initializes and starts the API server
func (s *APIServer) Start() error {
	apiPort := s.config.GetConfigWithDefault("api_port", "8080")
	s.port = apiPort

	s.logger.Info(fmt.Sprintf("Starting API server on port %s", apiPort), "api")

	// Get fallback ports from config
	fallbackPortsStr := s.config.GetConfigWithDefault("api_fallback_ports", "8081,8082")
	fallbackPorts := parsePortList(fallbackPortsStr)

	ports := append([]string{apiPort}, fallbackPorts...)
	var err error

	for _, port := range ports {
		addr := fmt.Sprintf(":%s", port)
		s.listener, err = net.Listen("tcp", addr)
		if err == nil {
			s.port = port
			s.logger.Info(fmt.Sprintf("API server bound to port %s", port), "api")
			break
		}
	}

	if s.listener == nil {
		return fmt.Errorf("failed to bind API server to any port: %v", err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := middleware.CORSMiddleware(mux)

	s.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(fmt.Sprintf("API server error: %v", err), "api")
		}
	}()

	s.logger.Info("API server started successfully", "api")
	return nil
}

// registerRoutes sets up all HTTP routes
func (s *APIServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)

	// Article routes
	mux.HandleFunc("/api/articles", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.handleListArticles(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/articles/", s.routeArticle)

	// Donations
	mux.HandleFunc("/api/donate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			s.handleDonate(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// routeArticle dispatches /api/articles/{id}[/purchase|/tip] paths
func (s *APIServer) routeArticle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
		s.handleGetArticle(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "purchase" && r.Method == http.MethodPost:
		s.handlePurchase(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "tip" && r.Method == http.MethodPost:
		s.handleTip(w, r, parts[0])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleHealth returns server liveness and uptime
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
		"version": "1.0",
	})
}

// Stop gracefully shuts down the API server
func (s *APIServer) Stop() error {
	s.cancel()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("API server shutdown error: %v", err), "api")
			return err
		}
	}

	s.logger.Info("API server stopped", "api")
	return nil
}

// GetPort returns the port the server is bound to
func (s *APIServer) GetPort() string {
	return s.port
}

// parsePortList splits a comma-separated port list from config
func parsePortList(portsStr string) []string {
	var ports []string
	for _, port := range strings.Split(portsStr, ",") {
		port = strings.TrimSpace(port)
		if port != "" {
			ports = append(ports, port)
		}
	}
	return ports
}
