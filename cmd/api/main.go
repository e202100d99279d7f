package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrJefferson29/DrivInn-sub001/internal/handlers"
	"github.com/MrJefferson29/DrivInn-sub001/internal/repository"
	"github.com/MrJefferson29/DrivInn-sub001/internal/scheduler"
	"github.com/MrJefferson29/DrivInn-sub001/internal/service"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/config"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/database"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/events"
	"github.com/MrJefferson29/DrivInn-sub001/pkg/logger"
	mw "github.com/MrJefferson29/DrivInn-sub001/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	bookingRepo := repository.NewBookingRepository(pool)
	listingRepo := repository.NewListingRepository(pool, cfg.Scheduler.DefaultTimezone)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	// Services
	bookingService := service.NewBookingService(bookingRepo, listingRepo, idempotencyRepo, eventBus)

	// Scheduler, with a cross-instance lease when Redis is reachable
	var lock *scheduler.SweepLock
	if client := newRedisClient(cfg.Redis); client != nil {
		lock = scheduler.NewSweepLock(client, "bookings:sweep:lease", cfg.Scheduler.LockTTL)
	} else {
		logger.Warn("Redis unreachable, sweep runs with in-process locking only")
	}
	sched := scheduler.New(bookingRepo, eventBus, lock, scheduler.Config{
		Interval:  cfg.Scheduler.SweepInterval,
		Tolerance: cfg.Scheduler.Tolerance,
	})
	go sched.Run(ctx)

	// Handlers
	h := handlers.New(bookingService, sched, cfg.Auth.JWTSecret)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.With(h.RequireJWT("admin")).Get("/", h.ListBookings)
			r.With(h.RequireJWT("guest")).Get("/mine", h.ListMyBookings)
			r.With(h.RequireJWT("host")).Post("/{id}/confirm", h.ConfirmBooking)
			r.With(h.RequireJWT("guest", "host")).Delete("/{id}", h.CancelBooking)
			r.With(h.RequireJWT("admin")).Post("/{id}/complete", h.CompleteBooking)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Post("/sweep", h.TriggerSweep)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down bookings service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}

// newRedisClient returns nil when Redis cannot be reached; the scheduler then
// degrades to in-process sweep locking instead of failing startup.
func newRedisClient(cfg config.RedisConfig) *redis.Client {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL", "error", err)
		return nil
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis ping failed", "error", err)
		return nil
	}
	return client
}
