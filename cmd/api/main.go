package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	rediscache "github.com/srgjo27/activity_booking/internal/adapter/cache/redis"
	"github.com/srgjo27/activity_booking/internal/adapter/handler"
	"github.com/srgjo27/activity_booking/internal/adapter/messaging/rabbitmq"
	"github.com/srgjo27/activity_booking/internal/adapter/notifier"
	"github.com/srgjo27/activity_booking/internal/adapter/repository/gormaudit"
	"github.com/srgjo27/activity_booking/internal/adapter/repository/postgres"
	"github.com/srgjo27/activity_booking/internal/core/ports"
	"github.com/srgjo27/activity_booking/internal/core/pricing"
	"github.com/srgjo27/activity_booking/internal/core/services"
	"github.com/srgjo27/activity_booking/internal/platform/config"
	"github.com/srgjo27/activity_booking/internal/platform/database"
	"github.com/srgjo27/activity_booking/internal/platform/logger"
	"github.com/srgjo27/activity_booking/internal/platform/obs"
)

func main() {
	cfg, fromFile, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if !fromFile {
		log.Info(".env not found, using OS environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to init tracer")
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		URL:        cfg.DatabaseURL(),
		MaxRetries: cfg.DBMaxRetries,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to db after retries")
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("failed to apply schema")
		}
	}

	slotRepo := postgres.NewSlotRepository(db)
	activityRepo := postgres.NewActivityRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	log.WithField("addr", cfg.RedisAddr).Info("connecting to redis")
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	ledger := services.NewLedger(slotRepo, log,
		services.WithSlotCache(rediscache.NewSlotCache(redisClient, cfg.SlotCacheTTL)),
		services.WithAvailabilityTimeout(cfg.AvailabilityTimeout),
		services.WithDemoFallback(cfg.DemoFallback),
	)

	dispatcher := services.NewDispatcher(log, notificationChannels(cfg, log),
		services.WithNotifyTimeout(cfg.NotifyTimeout),
		services.WithAdminChat(cfg.TelegramAdminChatID),
	)

	var publisher ports.EventPublisher = dispatcher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.EventsExchange, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer pub.Close()
		publisher = pub

		consumer := rabbitmq.NewNotificationConsumer(rabbitmq.ConsumerConfig{
			URL:      cfg.RabbitURL,
			Exchange: cfg.EventsExchange,
			Queue:    cfg.NotifyQueue,
		}, dispatcher, log)
		if err := consumer.Connect(); err != nil {
			log.WithError(err).Fatal("failed to start notification consumer")
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("notification consumer stopped")
			}
		}()
	}

	gormDB, err := gormaudit.Open(db, gormlogger.Warn)
	if err != nil {
		log.WithError(err).Fatal("failed to open audit store")
	}
	auditService := services.NewAuditService(gormaudit.NewRepository(gormDB), log)

	loc, _ := time.LoadLocation(cfg.Timezone)
	bookingService := services.NewBookingService(activityRepo, bookingRepo, ledger, publisher, auditService, log,
		services.BookingSettings{
			Rates: pricing.Rates{
				TaxRate:    cfg.TaxRate,
				ServiceFee: cfg.ServiceFee,
			},
			PlatformRate:    cfg.PlatformCommissionRate,
			SalespersonRate: cfg.SalespersonCommissionRate,
			Currency:        cfg.Currency,
			ReservationTTL:  cfg.ReservationTTL,
			SweepInterval:   cfg.SweepInterval,
			Location:        loc,
		},
	)

	e := handler.NewServer(log, []byte(cfg.JWTSecret), handler.Services{
		Bookings:     bookingService,
		Availability: ledger,
		Audit:        auditService,
	})
	e.Server.ReadTimeout = 5 * time.Second
	e.Server.WriteTimeout = 10 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	go bookingService.RunBackgroundCleanup(ctx)

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server starting")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server startup failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown failed")
	}

	log.Info("server exiting")
}

// notificationChannels picks the providers that have credentials and falls
// back to logging messages when none do.
func notificationChannels(cfg config.Config, log logrus.FieldLogger) []ports.Channel {
	client := &http.Client{Timeout: cfg.NotifyTimeout}
	var channels []ports.Channel

	if cfg.TelegramBotToken != "" {
		for _, name := range []string{services.ChannelTelegram, services.ChannelTelegramAdmin} {
			tg, err := notifier.NewTelegram(name, cfg.TelegramBotToken, cfg.TelegramAPIURL, client)
			if err != nil {
				log.WithError(err).WithField("channel", name).Error("telegram channel disabled")
				continue
			}
			channels = append(channels, tg)
		}
	}

	if cfg.TwilioAccountSID != "" {
		twilio := notifier.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			BaseURL:    cfg.TwilioAPIURL,
		}
		if cfg.TwilioFromNumber != "" {
			sms, err := notifier.NewTwilioSMS(cfg.TwilioFromNumber, twilio, client)
			if err != nil {
				log.WithError(err).Error("sms channel disabled")
			} else {
				channels = append(channels, sms)
			}
		}
		if cfg.TwilioWhatsAppFrom != "" {
			wa, err := notifier.NewTwilioWhatsApp(cfg.TwilioWhatsAppFrom, twilio, client)
			if err != nil {
				log.WithError(err).Error("whatsapp channel disabled")
			} else {
				channels = append(channels, wa)
			}
		}
	}

	if len(channels) == 0 {
		log.Warn("no notification provider configured, logging messages instead")
		for _, name := range []string{services.ChannelSMS, services.ChannelWhatsApp, services.ChannelTelegram, services.ChannelTelegramAdmin} {
			channels = append(channels, notifier.NewConsole(name, log))
		}
	}
	return channels
}
