package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-planner/internal/bot"
	"task-planner/internal/cache"
	"task-planner/internal/config"
	"task-planner/internal/events"
	"task-planner/internal/logger"
	"task-planner/internal/places"
	"task-planner/internal/repository"
	"task-planner/internal/service"
	"task-planner/internal/weather"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("logger: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		fatal("Database init failed", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var responseCache cache.Cache = cache.Noop{}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			responseCache = redisCache
			logger.Info("Redis cache enabled")
		}
	}

	hub := events.NewHub()
	publisher := events.Multi{hub}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Warn("NATS unavailable, events stay in-process", "error", err)
		} else {
			defer nc.Drain()
			publisher = append(publisher, events.NewNATSPublisher(nc))
			logger.Info("NATS publisher enabled", "url", cfg.NATS.URL)
		}
	} else {
		publisher = append(publisher, events.NewNoopPublisher())
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	geofenceRepo := repository.NewGeofenceRepository(db)
	savedLocationRepo := repository.NewSavedLocationRepository(db)

	weatherClient := weather.NewClient(cfg.Weather.APIKey, weather.Options{
		BaseURL:  cfg.Weather.BaseURL,
		Cache:    responseCache,
		CacheTTL: cfg.Weather.CacheTTL,
		Location: cfg.Location,
	})
	placesClient := places.NewClient(cfg.Google.MapsKey, cfg.Google.BaseURL, nil, responseCache)

	scheduler := service.NewSchedulerService(cfg.Location)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, scheduler)
	geofenceSvc := service.NewGeofenceService(geofenceRepo, notificationSvc)
	authSvc := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	taskSvc := service.NewTaskService(taskRepo, notificationSvc, geofenceSvc, hub, publisher, cfg.Location)
	orchestrator := service.NewOrchestrator(taskRepo, notificationSvc, geofenceSvc, weatherClient, cfg.Location,
		service.WithPublisher(publisher))
	agendaSvc := service.NewAgendaService(taskRepo)
	locationSvc := service.NewLocationService(placesClient, savedLocationRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Auth:         authSvc,
		Tasks:        taskSvc,
		Orchestrator: orchestrator,
		Agenda:       agendaSvc,
		Locations:    locationSvc,
		Geofences:    geofenceSvc,
		Weather:      weatherClient,
		Users:        userRepo,
	}, &cfg)
	if err != nil {
		fatal("Bot init failed", err)
	}
	notificationSvc.SetDispatcher(telegramBot)

	restored, err := notificationSvc.Restore(ctx)
	if err != nil {
		logger.Warn("Restoring notifications failed", "error", err)
	}
	logger.Info("Notifications restored", "count", restored)

	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Agenda reports failed", "error", err)
		}
	}
	if cfg.ReportAt != "" {
		if _, err := scheduler.ScheduleDaily(cfg.ReportAt, sendReports); err != nil {
			fatal("Scheduling reports failed", err)
		}
	} else if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, sendReports); err != nil {
			fatal("Scheduling reports failed", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("Task planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal("Bot stopped with error", err)
	}
	logger.Info("Shutdown complete")
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
