package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	api "github.com/mind-engage/classquiz/internal/api/http"
	"github.com/mind-engage/classquiz/internal/attempt"
	auth "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/config"
	"github.com/mind-engage/classquiz/internal/db"
	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/logger"
	"github.com/mind-engage/classquiz/internal/metrics"
	"github.com/mind-engage/classquiz/internal/profile"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/results"
	syncx "github.com/mind-engage/classquiz/internal/sync"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.Mode == config.ModeOffline})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("quizd stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	var (
		docs    docstore.Store
		journal syncx.Journal = syncx.Nop()
		events  api.EventLister
		dbh     *sql.DB
	)
	switch cfg.DocStore {
	case "memory":
		docs = docstore.NewInMemoryStore()
		lg.Warn("using in-memory document store; nothing survives a restart")
	default:
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		h, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			return err
		}
		defer h.Close()
		dbh = h
		docs = docstore.NewSQLStore(dbh)
		repo := syncx.NewEventRepo(dbh, cfg.SiteID)
		journal = repo
		events = repo
		lg.Info("event journal", zap.String("site", repo.Site()))
	}

	profiles := profile.NewStore(docs)
	if err := bootstrapAdmin(ctx, profiles, cfg, lg); err != nil {
		return err
	}

	progress := attempt.NewGateway(docs, lg.Named("progress"), cfg.ProgressFlushInterval)
	attempts := attempt.NewService(docs, progress, journal, lg.Named("attempt"))
	attempts.SetIdleTimeout(cfg.SessionIdleTimeout)
	ledger := grading.NewLedger(docs, journal, lg.Named("grading"))

	// --- router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware(lg.Named("http")), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Quizzes:            quiz.NewCatalog(docs),
		Attempts:           attempts,
		Ledger:             ledger,
		Results:            results.NewReader(docs),
		Profiles:           profiles,
		Auth:               auth.NewAuthService(cfg.AuthHMACSecret),
		Log:                lg,
		Events:             events,
		AllowClaimFallback: cfg.Mode == config.ModeOffline,
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if dbh != nil {
			if err := dbh.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	// --- background loops ---
	loops := make(chan struct{})
	go func() {
		attempts.Run(ctx)
		close(loops)
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		lg.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("docStore", cfg.DocStore),
			zap.String("db", cfg.DBDriver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-loops
			return err
		}
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	<-loops // includes the final progress flush
	return nil
}

// bootstrapAdmin creates the configured admin profile on first start.
func bootstrapAdmin(ctx context.Context, profiles *profile.Store, cfg config.Config, lg *zap.Logger) error {
	_, err := profiles.Get(ctx, cfg.AdminUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return err
	}
	if err := profiles.Put(ctx, profile.Profile{
		UID:          cfg.AdminUser,
		Role:         profile.RoleAdmin,
		Name:         "Administrator",
		PasswordHash: cfg.AdminPassHash,
	}); err != nil {
		return err
	}
	lg.Info("admin profile created", zap.String("uid", cfg.AdminUser))
	return nil
}
