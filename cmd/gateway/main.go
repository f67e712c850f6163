package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/quazian/internal/api/http"
	auth "github.com/mind-engage/quazian/internal/auth/middleware"
	"github.com/mind-engage/quazian/internal/config"
	"github.com/mind-engage/quazian/internal/dashboard"
	"github.com/mind-engage/quazian/internal/db"
	"github.com/mind-engage/quazian/internal/grading"
	"github.com/mind-engage/quazian/internal/platform/logger"
	"github.com/mind-engage/quazian/internal/quiz"
	"github.com/mind-engage/quazian/internal/roster"
	"github.com/mind-engage/quazian/internal/storage"
	syncx "github.com/mind-engage/quazian/internal/sync"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("quiz time zone", "err", err)
	}
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal("db driver", "err", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "err", err)
	}
	defer dbh.Close()

	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal("blob store", "err", err)
	}

	// --- Services ---
	events := syncx.NewEventRepo(dbh).WithSite(cfg.SiteID)
	quizStore := quiz.NewSQLStore(dbh, driver, events)
	rosterStore := roster.NewSQLStore(dbh, events)
	generator := quiz.NewGenerator(quizStore, loc, time.Now, log.With("component", "generator"))
	submitter := quiz.NewSubmitter(quizStore, grading.NewDefaultGrader(), time.Now, log.With("component", "submit"))
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.SessionTTL, cfg.CookieSecure)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.RequestLogger(log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Cron-Secret"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		DB:          dbh,
		Auth:        authSvc,
		Users:       rosterStore,
		Quizzes:     quizStore,
		CurrentSlot: generator.CurrentSlot,
		Submitter:   submitter,
		Generator:   generator,
		CronSecret:  cfg.CronSecret,
		Concepts:    rosterStore,
		Students:    rosterStore,
		Roster:      roster.NewService(rosterStore, blobs, log.With("component", "roster")),
		Dashboards:  dashboard.NewSQLStore(dbh),
		Log:         log,
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver, "tz", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server", "err", err)
	}
}
