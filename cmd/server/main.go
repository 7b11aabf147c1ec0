package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/dsilva06/fitzy-sub001/internal/config"
	"github.com/dsilva06/fitzy-sub001/internal/database"
	"github.com/dsilva06/fitzy-sub001/internal/handler"
	appmw "github.com/dsilva06/fitzy-sub001/internal/middleware"
	"github.com/dsilva06/fitzy-sub001/internal/queue"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
	"github.com/dsilva06/fitzy-sub001/internal/router"
	"github.com/dsilva06/fitzy-sub001/internal/service"
	"github.com/dsilva06/fitzy-sub001/internal/settlement"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional; rate limiting and the response cache fail open
	// without it.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	venues := repository.NewVenueRepo(db)
	classTypes := repository.NewClassTypeRepo(db)
	sessions := repository.NewSessionRepo(db)
	packages := repository.NewPackageRepo(db)
	credits := repository.NewCreditRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	sagas := repository.NewSagaRepo(db)
	waitlist := repository.NewWaitlistRepo(db)

	capacity := settlement.NewCapacityLedger(sessions)
	creditLedger := settlement.NewCreditLedger(credits)
	gate := settlement.NewPaymentGate(payments, creditLedger, service.NewOfflineGateway())
	notifier := service.NewQueuePublisher()

	orchestrator := settlement.NewOrchestrator(sessions, bookings, sagas, capacity, creditLedger, gate, waitlist, notifier, cfg.CancelGrace)
	canceller := settlement.NewCanceller(bookings, sagas, capacity, gate, waitlist, notifier)

	// Settle anything a previous process left mid-flight before taking
	// traffic, then keep sweeping in the background.
	if n, err := orchestrator.Recover(context.Background(), cfg.RecoverStaleAfter); err != nil {
		log.Printf("saga recovery: settled %d, last error: %v", n, err)
	} else if n > 0 {
		log.Printf("saga recovery: settled %d stale checkouts", n)
	}
	if n, err := canceller.Recover(context.Background(), cfg.RecoverStaleAfter); err != nil {
		log.Printf("cancellation recovery: settled %d, last error: %v", n, err)
	} else if n > 0 {
		log.Printf("cancellation recovery: settled %d incomplete cancels", n)
	}
	go func() {
		ticker := time.NewTicker(cfg.RecoverSweep)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := orchestrator.Recover(context.Background(), cfg.RecoverStaleAfter); err != nil {
				log.Printf("saga recovery: settled %d, last error: %v", n, err)
			} else if n > 0 {
				log.Printf("saga recovery: settled %d stale checkouts", n)
			}
			if n, err := canceller.Recover(context.Background(), cfg.RecoverStaleAfter); err != nil {
				log.Printf("cancellation recovery: settled %d, last error: %v", n, err)
			} else if n > 0 {
				log.Printf("cancellation recovery: settled %d incomplete cancels", n)
			}
			if n, err := canceller.ExpirePromotions(context.Background(), cfg.PromotionTTL); err != nil {
				log.Printf("promotion expiry: returned %d, last error: %v", n, err)
			} else if n > 0 {
				log.Printf("promotion expiry: returned %d unclaimed spots", n)
			}
			if n, err := credits.MarkExpired(context.Background()); err != nil {
				log.Printf("credit expiry: %v", err)
			} else if n > 0 {
				log.Printf("credit expiry: closed %d grants", n)
			}
		}
	}()

	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	authH := handler.NewAuthHandler(cfg, users, tokens)
	publicH := handler.NewPublicHandler(venues, sessions, packages)
	bookingH := handler.NewBookingHandler(bookings, payments, orchestrator, canceller)
	creditH := handler.NewCreditHandler(packages, credits)
	waitlistH := handler.NewWaitlistHandler(sessions, waitlist)
	adminH := handler.NewVenueAdminHandler(venues, classTypes, sessions, packages)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, publicH, appmw.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterMember(e, bookingH, creditH, waitlistH, cfg.JWTSecret,
		appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterVenueAdmin(e, adminH, cfg.JWTSecret)

	log.Fatal(e.Start(":" + cfg.Port))
}
