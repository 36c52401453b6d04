package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/castlegate/castlegate/internal/api/handler"
	"github.com/castlegate/castlegate/internal/middleware"
	"github.com/castlegate/castlegate/internal/services/auth"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service

	// WebsocketHandler serves /ws; it authenticates its own requests
	// from the bearer token.
	WebsocketHandler http.Handler
}

// NewRouter creates the router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	authHandler := handler.NewAuthHandler(cfg.AuthService)

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/guest", authHandler.Guest).Methods(http.MethodPost)
	authRoutes.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	r.Handle("/ws", cfg.WebsocketHandler)

	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
