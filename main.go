package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservations/cache"
	"github.com/yeremiapane/restaurant-reservations/config"
	"github.com/yeremiapane/restaurant-reservations/database"
	"github.com/yeremiapane/restaurant-reservations/events"
	"github.com/yeremiapane/restaurant-reservations/floor"
	"github.com/yeremiapane/restaurant-reservations/middlewares"
	"github.com/yeremiapane/restaurant-reservations/router"
	"github.com/yeremiapane/restaurant-reservations/services"
	"github.com/yeremiapane/restaurant-reservations/utils"
)

// starter floor plan used by SEED=true on an empty database
var seedTables = []struct{ number, capacity int }{
	{1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 4}, {6, 6}, {7, 8},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := floor.NewHub(utils.InfoLogger.WithField("component", "floor"))
	publisher, closers := buildPublisher(cfg, hub)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				utils.ErrorLogger.WithError(err).Warn("closing event publisher")
			}
		}
	}()

	opts := []services.Option{
		services.WithPublisher(publisher),
		services.WithLogger(utils.InfoLogger.WithField("component", "allocation")),
	}
	if client := config.NewRedisClient(cfg.Redis); client != nil {
		defer client.Close()
		opts = append(opts, services.WithCache(cache.NewRedisCache(client, cfg.Redis.TTL)))
		utils.InfoLogger.WithField("addr", cfg.Redis.Addr).Info("availability cache enabled")
	} else if cfg.Redis.Enabled {
		utils.ErrorLogger.WithField("addr", cfg.Redis.Addr).Warn("redis unreachable, availability cache disabled")
	}

	engine := services.NewAllocationEngine(db, services.Policy{
		AutoAssign:      cfg.Reservation.AutoAssign,
		StrictCapacity:  cfg.Reservation.StrictCapacity,
		DefaultDuration: cfg.Reservation.DefaultDuration,
		MaxDuration:     cfg.Reservation.MaxDuration,
		UpcomingLimit:   cfg.Reservation.UpcomingLimit,
		Location:        cfg.Reservation.Location(),
	}, opts...)
	orders := services.NewOrderService(db, engine)

	if cfg.Seed {
		if err := seed(ctx, cfg, db, engine); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed database: %v", err)
		}
	}

	sweeper := services.NewReservationSweeper(engine, cfg.Reservation.SweepInterval,
		utils.InfoLogger.WithField("component", "sweeper"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	r := router.SetupRouter(router.Dependencies{
		DB:          db,
		Engine:      engine,
		Orders:      orders,
		Hub:         hub,
		QR:          services.NewTableQR(cfg.PublicBaseURL),
		CORSOrigin:  cfg.CORSOrigin,
		RateLimiter: middlewares.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.WithError(err).Error("server shutdown")
	}
}

// buildPublisher always feeds the floor hub and adds the configured brokers.
func buildPublisher(cfg *config.Config, hub *floor.Hub) (events.Publisher, []func() error) {
	pubs := events.Multi{hub}
	var closers []func() error

	if cfg.Events.Broker == "amqp" || cfg.Events.Broker == "both" {
		p, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
		if err != nil {
			utils.ErrorLogger.WithError(err).Warn("rabbitmq unavailable, events stay local")
		} else {
			pubs = append(pubs, p)
			closers = append(closers, p.Close)
		}
	}
	if cfg.Events.Broker == "kafka" || cfg.Events.Broker == "both" {
		p := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		pubs = append(pubs, p)
		closers = append(closers, p.Close)
	}
	return pubs, closers
}

func seed(ctx context.Context, cfg *config.Config, db *gorm.DB, engine *services.AllocationEngine) error {
	if err := database.SeedAdmin(db, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return err
	}
	if err := database.SeedMenu(db); err != nil {
		return err
	}

	tables, err := engine.ListTables(ctx, true)
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return nil
	}
	for _, t := range seedTables {
		if _, err := engine.AddTable(ctx, t.number, t.capacity); err != nil {
			return err
		}
	}
	utils.InfoLogger.WithField("tables", len(seedTables)).Info("floor plan seeded")
	return nil
}
