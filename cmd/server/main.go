package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/Maristella28/Bms-111725-sub004/internal/api"
	"github.com/Maristella28/Bms-111725-sub004/internal/config"
	"github.com/Maristella28/Bms-111725-sub004/internal/notify"
	"github.com/Maristella28/Bms-111725-sub004/internal/repository/postgres"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/changelog"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/schedule"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
	"github.com/Maristella28/Bms-111725-sub004/internal/worker"
)

func main() {
	log.Println("Starting Barangay Survey API server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis unreachable, falling back to PG advisory locks: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
	}

	// Repositories
	scheduleRepo := postgres.NewScheduleRepo(db)
	surveyRepo := postgres.NewSurveyRepo(db)
	changeRepo := postgres.NewChangeLogRepo(db)
	directory := postgres.NewHouseholdDirectory(db)

	// Services
	scheduleSvc := schedule.NewService(scheduleRepo)
	surveySvc := survey.NewService(surveyRepo, time.Duration(cfg.Scheduler.ExpiryDays)*24*time.Hour)
	changeSvc := changelog.NewService(changeRepo)

	// Notification channels for on-demand dispatch
	var emailSender notify.EmailSender
	if cfg.Notify.SES.AccessKey != "" {
		sender, err := notify.NewSESEmailSender(context.Background(), cfg.Notify)
		if err != nil {
			log.Printf("Warning: SES sender unavailable: %v", err)
		} else {
			emailSender = sender
		}
	}
	var smsSender notify.SMSSender
	if cfg.Notify.SMS.GatewayURL != "" {
		smsSender = notify.NewSMSGatewaySender(cfg.Notify.SMS)
	}
	notifier := notify.NewDispatcher(emailSender, smsSender, cfg.Notify.PublicBaseURL)

	// On-demand runner (not started; the worker binary owns the poll loop)
	dispatcher := worker.NewSurveyDispatcher(scheduleRepo, directory, surveySvc, notifier, db)
	dispatcher.SetRedisClient(redisClient)
	dispatcher.SetSendWorkers(cfg.Scheduler.DispatchWorkers)

	handlers := api.NewHandlers(scheduleSvc, surveySvc, changeSvc, dispatcher, db)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		log.Printf("Listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
