package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dukerupert/stampcard/internal/archive"
	"github.com/dukerupert/stampcard/internal/auth"
	"github.com/dukerupert/stampcard/internal/catalog"
	"github.com/dukerupert/stampcard/internal/eventconfig"
	"github.com/dukerupert/stampcard/internal/handler"
	"github.com/dukerupert/stampcard/internal/identity"
	"github.com/dukerupert/stampcard/internal/ledger"
	"github.com/dukerupert/stampcard/internal/metrics"
	"github.com/dukerupert/stampcard/internal/middleware"
	"github.com/dukerupert/stampcard/internal/progress"
	"github.com/dukerupert/stampcard/internal/redemption"
	"github.com/dukerupert/stampcard/internal/report"
	"github.com/dukerupert/stampcard/internal/store"
)

// Config carries the settings the server needs beyond the database.
type Config struct {
	Keyring     *auth.Keyring
	ProgressTTL time.Duration
	Archive     archive.Config
	// Clock drives caches and rate limiting. Nil means the real clock.
	Clock clockwork.Clock
}

type Server struct {
	participants   *store.ParticipantStore
	keyring        *auth.Keyring
	metrics        *metrics.Metrics
	rateLimiter    *middleware.RateLimiter
	progressView   *progress.View
	archiveManager *archive.Manager
	participantH   *handler.ParticipantHandler
	completionH    *handler.CompletionHandler
	giftH          *handler.GiftHandler
	gameH          *handler.GameHandler
	configH        *handler.ConfigurationHandler
	reportH        *handler.ReportHandler
	archiveH       *handler.ArchiveHandler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := metrics.New()

	participantStore := store.NewParticipantStore(db)
	gameStore := store.NewGameStore(db)
	hostStore := store.NewHostStore(db)
	completionStore := store.NewCompletionStore(db)
	redemptionStore := store.NewRedemptionStore(db)
	configStore := store.NewConfigurationStore(db)
	archiveStore := store.NewArchiveStore(db)

	cat := catalog.New(gameStore, hostStore, logger.With("component", "catalog"))
	view := progress.NewView(participantStore, cat, clock, cfg.ProgressTTL)
	resolver := identity.NewResolver(participantStore, logger.With("component", "identity"))
	led := ledger.New(completionStore, gameStore, view, m, logger.With("component", "ledger"))
	gifts := redemption.New(participantStore, cat, redemptionStore, view, m, logger.With("component", "redemption"))
	builder := report.NewBuilder(participantStore, cat, redemptionStore, completionStore, logger.With("component", "report"))
	configSvc := eventconfig.New(configStore, clock, logger.With("component", "configuration"))
	archiveMgr := archive.NewManager(cfg.Archive, db, archiveStore, m, logger.With("component", "archive"))

	return &Server{
		participants:   participantStore,
		keyring:        cfg.Keyring,
		metrics:        m,
		rateLimiter:    middleware.NewRateLimiter(clock),
		progressView:   view,
		archiveManager: archiveMgr,
		participantH:   handler.NewParticipantHandler(resolver, view, m, logger.With("component", "participant")),
		completionH:    handler.NewCompletionHandler(led, logger.With("component", "completion")),
		giftH:          handler.NewGiftHandler(gifts, logger.With("component", "gift")),
		gameH:          handler.NewGameHandler(cat, view, logger.With("component", "game")),
		configH:        handler.NewConfigurationHandler(configSvc, logger.With("component", "configuration")),
		reportH:        handler.NewReportHandler(builder, logger.With("component", "report")),
		archiveH:       handler.NewArchiveHandler(archiveMgr, logger.With("component", "archive")),
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// ArchiveManager returns the archive manager so callers can start and stop
// its schedule.
func (s *Server) ArchiveManager() *archive.Manager {
	return s.archiveManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /api/participants", s.rateLimitedHandler(s.participantH.Register))
	mux.HandleFunc("GET /api/progress", s.rateLimitedHandler(s.participantH.Progress))
	mux.HandleFunc("GET /api/participants/{id}/qr.png", s.participantH.QRCode)
	mux.HandleFunc("GET /api/games/active", s.gameH.ListActive)
	mux.HandleFunc("GET /api/games/{id}/host", s.gameH.Host)
	mux.HandleFunc("GET /api/configuration", s.configH.Get)

	staff := s.require(auth.RoleHost, auth.RoleGift)
	host := s.require(auth.RoleHost)
	gift := s.require(auth.RoleGift)
	admin := s.require(auth.RoleAdmin)

	mux.Handle("POST /api/scan", staff(s.participantH.Scan))

	// Game host routes
	mux.Handle("GET /api/participants/lookup", host(s.participantH.Lookup))
	mux.Handle("POST /api/completions", host(s.completionH.Record))
	mux.Handle("GET /api/participants/{id}/completions", host(s.completionH.History))

	// Gift station routes
	mux.Handle("GET /api/participants/{id}/gift", gift(s.giftH.State))
	mux.Handle("POST /api/participants/{id}/gift", gift(s.giftH.Redeem))

	// Catalog administration
	mux.Handle("GET /api/games", admin(s.gameH.List))
	mux.Handle("POST /api/games", admin(s.gameH.Create))
	mux.Handle("GET /api/games/{id}", admin(s.gameH.Get))
	mux.Handle("PUT /api/games/{id}", admin(s.gameH.Update))
	mux.Handle("PUT /api/games/{id}/active", admin(s.gameH.SetActive))
	mux.Handle("DELETE /api/games/{id}", admin(s.gameH.Delete))
	mux.Handle("GET /api/hosts", admin(s.gameH.ListHosts))
	mux.Handle("POST /api/hosts", admin(s.gameH.CreateHost))
	mux.Handle("GET /api/hosts/{id}", admin(s.gameH.GetHost))
	mux.Handle("PUT /api/hosts/{id}/active", admin(s.gameH.SetHostActive))
	mux.Handle("DELETE /api/hosts/{id}", admin(s.gameH.DeleteHost))

	// Event administration
	mux.Handle("PUT /api/configuration", admin(s.configH.Update))
	mux.Handle("GET /api/report", admin(s.reportH.Get))
	mux.Handle("POST /api/admin/seed", admin(s.gameH.Seed))
	mux.Handle("POST /api/admin/archives", admin(s.archiveH.Run))
	mux.Handle("GET /api/admin/archives", admin(s.archiveH.List))
	mux.Handle("GET /api/admin/archives/{id}/download", admin(s.archiveH.Download))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(mux)
}

func (s *Server) require(roles ...auth.Role) func(http.HandlerFunc) http.Handler {
	mw := middleware.RequireRole(s.keyring, s.rateLimiter, roles...)
	return func(h http.HandlerFunc) http.Handler {
		return mw(h)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	n, err := s.participants.Count(ctx)
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "participants": n})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return r.Method + ":" + middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
