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

	"github.com/Maristella28/Bms-111725-sub004/internal/config"
	"github.com/Maristella28/Bms-111725-sub004/internal/notify"
	"github.com/Maristella28/Bms-111725-sub004/internal/repository/postgres"
	"github.com/Maristella28/Bms-111725-sub004/internal/service/survey"
	"github.com/Maristella28/Bms-111725-sub004/internal/worker"
)

func main() {
	log.Println("Starting Barangay Survey dispatch worker...")

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

	scheduleRepo := postgres.NewScheduleRepo(db)
	surveyRepo := postgres.NewSurveyRepo(db)
	directory := postgres.NewHouseholdDirectory(db)
	surveySvc := survey.NewService(surveyRepo, time.Duration(cfg.Scheduler.ExpiryDays)*24*time.Hour)

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

	dispatcher := worker.NewSurveyDispatcher(scheduleRepo, directory, surveySvc, notifier, db)
	dispatcher.SetRedisClient(redisClient)
	dispatcher.SetPollInterval(time.Duration(cfg.Scheduler.TickSeconds) * time.Second)
	dispatcher.SetBatchLimit(cfg.Scheduler.BatchLimit)
	dispatcher.SetSendWorkers(cfg.Scheduler.DispatchWorkers)

	if cfg.Scheduler.RecoverPending {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if n, err := dispatcher.RecoverPending(ctx, cfg.Scheduler.RecoverBatchSize, time.Now().UTC()); err != nil {
			log.Printf("Pending dispatch recovery failed: %v", err)
		} else if n > 0 {
			log.Printf("Recovered %d pending dispatches from previous run", n)
		}
		cancel()
	}

	if err := dispatcher.Start(); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}

	sweeper := worker.NewExpirySweeper(surveySvc, db, cfg.Scheduler.ExpirySweepSpec)
	sweeper.SetRedisClient(redisClient)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start expiry sweeper: %v", err)
	}

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	sweeper.Stop()
	dispatcher.Stop()
	log.Println("Worker stopped")
}
