package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/audit"
	"github.com/dbayan/storefront/internal/auth"
	"github.com/dbayan/storefront/internal/chat"
	"github.com/dbayan/storefront/internal/gate"
	"github.com/dbayan/storefront/internal/notify"
	"github.com/dbayan/storefront/internal/session"
	"github.com/dbayan/storefront/internal/storage"
)

// Store is the stock and ban persistence the boundary talks to. Both the
// JSON file store and the postgres store satisfy it.
type Store interface {
	Items(ctx context.Context) ([]storage.Item, error)
	ApplyOrder(ctx context.Context, lines []storage.OrderLine) (*storage.OrderResult, error)
	Upsert(ctx context.Context, upd storage.ItemUpdate) (storage.Item, error)
	Remove(ctx context.Context, id int) error
	IsBanned(ctx context.Context, email string) (bool, error)
	Ban(ctx context.Context, email string) error
}

// Mailer hands messages to the async dispatcher.
type Mailer interface {
	Enqueue(msg notify.Message)
}

// Auditor records mutating requests off the request path.
type Auditor interface {
	Record(entry audit.Entry)
}

type Config struct {
	Port               string
	OperatorEmail      string
	SessionIdleTimeout time.Duration
}

type Server struct {
	store    Store
	sessions *session.Registry
	hub      *chat.Hub
	window   *gate.Window
	mailer   Mailer
	auditor  Auditor
	resolver *auth.Resolver
	log      *zap.Logger
	config   Config

	httpServer *http.Server
}

func New(
	store Store,
	sessions *session.Registry,
	hub *chat.Hub,
	window *gate.Window,
	mailer Mailer,
	auditor Auditor,
	resolver *auth.Resolver,
	log *zap.Logger,
	config Config,
) *Server {
	if config.SessionIdleTimeout <= 0 {
		config.SessionIdleTimeout = 20 * time.Minute
	}
	return &Server{
		store:    store,
		sessions: sessions,
		hub:      hub,
		window:   window,
		mailer:   mailer,
		auditor:  auditor,
		resolver: resolver,
		log:      log,
		config:   config,
	}
}

func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("server starting", zap.String("port", s.config.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/stock", s.handleStock).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/check-ban", s.handleCheckBan).Methods(http.MethodPost)
	r.Handle("/order", s.gateMiddleware(http.HandlerFunc(s.handleOrder))).Methods(http.MethodPost)
	r.Handle("/schedule-pickup", s.gateMiddleware(http.HandlerFunc(s.handleSchedulePickup))).Methods(http.MethodPost)

	r.HandleFunc("/update-stock", s.handleUpdateStock).Methods(http.MethodPost)
	r.HandleFunc("/update-stock", s.handleDeleteStock).Methods(http.MethodDelete)
	r.HandleFunc("/ban-email", s.handleBanEmail).Methods(http.MethodPost)
	r.HandleFunc("/shutdown-site", s.handleShutdownSite).Methods(http.MethodPost)
	r.HandleFunc("/end-sessions", s.handleEndSessions).Methods(http.MethodPost)
	r.HandleFunc("/end-sessions-20m", s.handleEndIdleSessions).Methods(http.MethodPost)
	r.HandleFunc("/clear-carts", s.handleClearCarts).Methods(http.MethodPost)
	r.HandleFunc("/users", s.handleUsers).Methods(http.MethodGet)

	r.HandleFunc("/chat", s.handleChat)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s.auditMiddleware(r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// statusFromErr maps the storage error taxonomy onto HTTP statuses.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
