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
	"github.com/khojghar/khojghar-api/internal/http/handlers"
	hmw "github.com/khojghar/khojghar-api/internal/http/middleware"
	"github.com/khojghar/khojghar-api/internal/platform/geocode"
	"github.com/khojghar/khojghar-api/internal/platform/mailer"
	"github.com/khojghar/khojghar-api/internal/platform/media"
	"github.com/khojghar/khojghar-api/internal/repo/mongodb"
	"github.com/khojghar/khojghar-api/pkg/config"
	"github.com/khojghar/khojghar-api/pkg/events"
	"github.com/khojghar/khojghar-api/pkg/logger"
	mw "github.com/khojghar/khojghar-api/pkg/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		logger.Error("Failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	accounts := mongodb.NewAccountRepository(db)
	listings := mongodb.NewListingRepository(db)

	// Redis backs the auth rate limiter and the geocode cache. The API
	// degrades gracefully without it.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, rate limiting and geocode cache disabled", "error", err)
			redisClient = nil
		}
	}

	var bus events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			bus = nc
		}
	}
	defer bus.Close()

	var mailSvc mailer.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		mailSvc = mailer.NewDevMailer()
	} else {
		mailSvc = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	geocoder := geocode.NewNominatim(cfg.Geocode.Endpoint, cfg.Geocode.UserAgent, cfg.Geocode.Timeout, cfg.Geocode.SuggestLimit)
	if redisClient != nil {
		geocoder.WithCache(redisClient, cfg.Geocode.CacheTTL)
	}

	var uploader media.Uploader
	if cfg.Media.CloudName != "" {
		uploader = media.NewCloudinary(cfg.Media.CloudName, cfg.Media.UploadPreset, cfg.Media.Folder)
	} else {
		logger.Warn("CLOUDINARY_CLOUD_NAME not set, image uploads disabled")
	}

	sessions := &hmw.Sessions{
		Secret:     cfg.Auth.JWTSecret,
		CookieName: cfg.Auth.CookieName,
	}

	authHandler := handlers.NewAuthHandler(accounts, mailSvc, bus, sessions, cfg.Auth)
	listingHandler := handlers.NewListingHandler(listings, accounts, geocoder, uploader, bus, sessions, cfg.Media.MaxBytes)
	userHandler := handlers.NewUserHandler(accounts, sessions)
	membershipHandler := handlers.NewMembershipHandler(sessions)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		if redisClient != nil {
			limiter := hmw.NewRateLimiter(redisClient, 20, time.Minute)
			r.With(limiter.Middleware).Mount("/auth", authHandler.Routes())
		} else {
			r.Mount("/auth", authHandler.Routes())
		}
		r.Mount("/listings", listingHandler.Routes())
		r.Mount("/users", userHandler.Routes())
		r.Mount("/membership", membershipHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down api server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting api server", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
