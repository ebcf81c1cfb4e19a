package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/awsclient"
	"github.com/msaedi/instructly-sub005/config"
	"github.com/msaedi/instructly-sub005/controllers"
	"github.com/msaedi/instructly-sub005/database"
	"github.com/msaedi/instructly-sub005/kafka"
	"github.com/msaedi/instructly-sub005/logger"
	"github.com/msaedi/instructly-sub005/middleware"
	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
	"github.com/msaedi/instructly-sub005/routes"
	"github.com/msaedi/instructly-sub005/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[Instructly] Failed to load config:", err)
	}

	if err := database.Connect(cfg); err != nil {
		log.Fatal("[Instructly] Failed to connect to DB:", err)
	}
	if err := database.DB.AutoMigrate(
		&models.Booking{},
		&models.PlatformCredit{},
		&models.PaymentEvent{},
		&models.StripeCustomer{},
		&models.StripeConnectedAccount{},
	); err != nil {
		log.Fatal("[Instructly] Failed to migrate models:", err)
	}

	zlog := logger.New(cfg.Env)
	defer zlog.Sync()

	redisClient := database.NewRedisClient(cfg.RedisURL)
	balanceCache := services.NewRedisBalanceCache(redisClient)

	bookingRepo := repository.NewGormBookingRepository(database.DB)
	creditRepo := repository.NewGormCreditRepository(database.DB)
	eventRepo := repository.NewGormPaymentEventRepository(database.DB)
	accountRepo := repository.NewGormStripeAccountRepository(database.DB)

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)

	producer := kafka.NewBookingEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.BookingTopic)
	defer producer.Close()

	var snsClient awsclient.SNSPublisher
	if cfg.BookingSNSArn != "" {
		awsCfg, err := awsclient.LoadAWSConfig(context.Background())
		if err != nil {
			zlog.Warn("AWS config unavailable, SNS publishing disabled", zap.Error(err))
		} else {
			snsClient = awsclient.NewSNSClient(awsCfg)
		}
	}
	publisher := services.NewBookingEventPublisher(producer, snsClient, cfg.BookingSNSArn, zlog)

	ledgerSvc := services.NewLedgerService(creditRepo, eventRepo, balanceCache, zlog)
	milestoneSvc := services.NewMilestoneService(bookingRepo, ledgerSvc, zlog)
	settlementSvc := services.NewSettlementService(
		services.NewGormTxRunner(database.DB),
		bookingRepo, accountRepo, stripeSvc, ledgerSvc, milestoneSvc, publisher, zlog,
	)
	bookingSvc := services.NewBookingService(
		bookingRepo, creditRepo, accountRepo, stripeSvc,
		ledgerSvc, milestoneSvc, settlementSvc, publisher, zlog,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zlog))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimitMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	bc := &controllers.BookingController{
		Bookings: bookingSvc,
		Payments: services.NewPaymentStateReader(bookingRepo, accountRepo),
		Logger:   zlog,
	}
	cc := &controllers.CreditController{Ledger: ledgerSvc, Credits: creditRepo, Logger: zlog}
	wc := &controllers.WebhookController{Stripe: stripeSvc, Bookings: bookingRepo, Ledger: ledgerSvc, Logger: zlog}
	routes.Register(r, cfg.JWTSecret, bc, cc, wc)

	zlog.Info("Instructly backend running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[Instructly] Server failed:", err)
	}
}
