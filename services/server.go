package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/praxis-voice/repository"
	ws "github.com/krshsl/praxis-voice/websocket"
	"github.com/redis/go-redis/v9"
)

// Server holds all server dependencies
type Server struct {
	config           *Config
	pool             *pgxpool.Pool
	repo             *repository.GORMRepository
	turns            *repository.TurnRepository
	redis            *redis.Client
	defaults         Defaults
	geminiService    *GeminiService
	vapiClient       *VapiClient
	tokenService     *TokenService
	activeCalls      *ActiveCalls
	sessionService   *SessionService
	analysisService  *AnalysisService
	webhookService   *WebhookService
	sessionEndpoints *SessionEndpoints
	webhookEndpoints *WebhookEndpoints
	wsHub            *ws.Hub
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{config: config}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(pool *pgxpool.Pool, repo *repository.GORMRepository, turns *repository.TurnRepository) {
	s.pool = pool
	s.repo = repo
	s.turns = turns
}

// SetRedis enables the shared webhook response cache.
func (s *Server) SetRedis(client *redis.Client) {
	s.redis = client
}

func (s *Server) SetDefaults(defaults Defaults) {
	s.defaults = defaults
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.repo == nil || s.turns == nil {
		return errors.New("database not configured")
	}

	if s.config.AI.GeminiAPIKey != "" {
		gemini, err := NewGeminiService(ctx, s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
		if err != nil {
			return err
		}
		s.geminiService = gemini
		slog.Info("Gemini service initialized", "model", s.config.AI.GeminiModel)
	} else {
		slog.Warn("Gemini API key not configured, dynamic questions and on-demand analysis disabled")
	}

	if s.config.Vapi.APIKey == "" {
		slog.Warn("Vapi API key not configured, sessions cannot be started")
	}
	s.vapiClient = NewVapiClient(s.config.Vapi.APIKey, s.config.Vapi.BaseURL, s.config.Interview.VoiceTimeout)

	if s.config.Webhook.Secret == "" {
		slog.Warn("Webhook secret not configured, provider callbacks will be rejected")
	}
	s.tokenService = NewTokenService(s.config.Webhook.Secret, s.config.JWT.Secret, s.config.Webhook.TokenTTL)

	s.wsHub = ws.NewHub()
	s.activeCalls = NewActiveCalls()

	// a nil *GeminiService must not end up inside a non-nil interface
	var generator TextGenerator
	if s.geminiService != nil {
		generator = s.geminiService
	}

	s.sessionService = NewSessionService(SessionServiceDeps{
		Sessions:     s.repo,
		Templates:    s.repo,
		Interviewers: s.repo,
		Turns:        s.turns,
		Voice:        s.vapiClient,
		Questions:    NewQuestionGenerator(generator, s.config.Interview.LLMTimeout),
		Tokens:       s.tokenService,
		Events:       s.wsHub,
		Calls:        s.activeCalls,
		Defaults:     s.defaults,
		Settings: VoiceSettings{
			PublicBaseURL:       s.config.Server.PublicBaseURL,
			Model:               s.config.AI.GeminiModel,
			VoiceProvider:       s.config.Vapi.VoiceProvider,
			TranscriberProvider: s.config.Vapi.TranscriberProvider,
			TranscriberModel:    s.config.Vapi.TranscriberModel,
		},
	})
	s.analysisService = NewAnalysisService(s.repo, s.repo, generator, s.wsHub, 0)

	var cache ResponseCache
	if s.redis != nil {
		cache = NewRedisResponseCache(s.redis, s.config.Redis.TTL)
		slog.Info("Webhook response cache backed by redis", "addr", s.config.Redis.Addr)
	} else {
		cache = NewMemoryResponseCache(s.config.Redis.TTL)
		slog.Info("Webhook response cache kept in memory")
	}
	s.webhookService = NewWebhookService(s.sessionService, s.analysisService, cache, s.config.Webhook.ProcessTimeout)

	s.sessionEndpoints = NewSessionEndpoints(s.sessionService, s.analysisService, s.turns, s.wsHub, s.config.WebSocket.AllowedOrigins)
	s.webhookEndpoints = NewWebhookEndpoints(s.webhookService, s.tokenService)
	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		// Provider callbacks carry their own per-session token
		if s.webhookEndpoints != nil {
			s.webhookEndpoints.RegisterRoutes(r)
		}

		if s.sessionEndpoints != nil {
			if s.config.JWT.Secret != "" {
				r.Group(func(r chi.Router) {
					r.Use(s.tokenService.Middleware)
					s.sessionEndpoints.RegisterRoutes(r)
				})
			} else {
				slog.Warn("JWT secret not configured, session routes are unauthenticated")
				s.sessionEndpoints.RegisterRoutes(r)
			}
		}
	})

	return r
}

// Start serves HTTP and the background loops until SIGINT or SIGTERM.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go s.wsHub.Run(ctx)
	go s.activeCalls.Run(ctx, 0, s.sessionService.ExpireCall)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	stop()

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"
	cacheStatus := "memory"

	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			cacheStatus = "down"
			status = "degraded"
		} else {
			cacheStatus = "up"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
		"cache":    cacheStatus,
	})

	slog.Info("Health check", "status", status, "database", dbStatus, "cache", cacheStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}
