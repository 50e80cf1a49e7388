package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/config"
	"github.com/poolfund/lending-service/internal/handler"
	"github.com/poolfund/lending-service/internal/integrations/bureau"
	"github.com/poolfund/lending-service/internal/lending"
	"github.com/poolfund/lending-service/internal/middleware"
	"github.com/poolfund/lending-service/internal/notify"
	"github.com/poolfund/lending-service/internal/repository"
	"github.com/poolfund/lending-service/internal/scheduler"
	"github.com/poolfund/lending-service/internal/service"
	"github.com/poolfund/lending-service/internal/treasury"
	"github.com/poolfund/lending-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	clock := lending.SystemClock{}
	notifier := notify.Multi{
		notify.NewLogNotifier(logger),
		notify.NewJournalNotifier(repo, logger),
	}
	engine := lending.NewEngine(
		treasury.NewTreasury(repo, cfg.HMACSecret, logger),
		clock,
		notifier,
	)
	svc := service.NewService(repo, engine, logger, cfg)
	svc.SetBureau(bureau.NewClient(cfg, logger))
	mailer := email.NewSender(cfg, logger)
	svc.SetMailer(mailer)
	h := handler.NewHandler(svc)

	// Start overdue reminder job
	reminders := scheduler.NewReminders(engine, repo, mailer, clock, logger)
	if err := reminders.Start(); err != nil {
		logger.Fatalf("Failed to start reminder scheduler: %v", err)
	}
	defer reminders.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/pools", h.ListPools).Methods("GET")
	authRouter.HandleFunc("/loans", h.RequestLoan).Methods("POST")
	authRouter.HandleFunc("/loans/{id}", h.GetLoan).Methods("GET")
	authRouter.HandleFunc("/loans/{id}/repay", h.RepayLoan).Methods("POST")
	authRouter.HandleFunc("/score", h.GetScore).Methods("GET")
	// Admin routes
	adminRouter := authRouter.PathPrefix("/pools").Subrouter()
	adminRouter.Use(middleware.AdminOnly)
	adminRouter.HandleFunc("", h.CreatePool).Methods("POST")
	adminRouter.HandleFunc("/{id}/funds", h.AddFunds).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
