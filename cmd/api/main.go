package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"scheme-admin/internal/auth"
	"scheme-admin/internal/cache"
	"scheme-admin/internal/catalog"
	"scheme-admin/internal/config"
	"scheme-admin/internal/db"
	"scheme-admin/internal/middleware"
	"scheme-admin/internal/schemes"
	"scheme-admin/internal/uploads"
	"scheme-admin/internal/users"
	"scheme-admin/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cacheStore, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("redis connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:    []byte(cfg.JWTSecret),
			AccessTTL: time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			Issuer:    "scheme-admin",
		}
	} else {
		logger.Warn("jwt secret missing, admin routes disabled")
	}

	val := validation.New()

	catalogService := catalog.NewService(catalog.NewRepository(cols.States, cols.Categories), cacheStore, cfg.CacheTTL(), cfg.Timezone, logger)
	catalogHandler := catalog.NewHandler(catalogService, val, logger)

	images := uploads.NewGridFSStore(cols.Images)
	uploadsHandler := uploads.NewHandler(images, logger)

	schemesService := schemes.NewService(schemes.NewRepository(cols.Schemes), images, catalogService, cfg.Timezone, logger)
	schemesHandler := schemes.NewHandler(schemesService, val, logger, cfg.MaxUploadBytes())

	usersService := users.NewService(users.NewRepository(cols.Users), jwtManager, cfg.AdminSetupKey, cfg.Timezone)
	usersHandler := users.NewHandler(usersService, val, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuth, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/uploads/{fileId}", uploadsHandler.Serve)

	r.Route("/user", func(public chi.Router) {
		public.Get("/getAllSchemes", schemesHandler.List)
		public.Get("/getSchemeBySlug/{slugOrId}", schemesHandler.GetBySlugOrID)
		public.Get("/getAllStates", catalogHandler.List(catalog.KindStates))
		public.Get("/allCategories", catalogHandler.List(catalog.KindCategories))

		public.Group(func(authed chi.Router) {
			authed.Use(middleware.Authenticate(jwtManager))
			authed.Get("/verifyToken", usersHandler.VerifyToken)
			authed.Get("/me", usersHandler.Me)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.With(authLimiter.Middleware).Post("/loginUser", usersHandler.Login)
		admin.With(authLimiter.Middleware).Post("/registerUser", usersHandler.Register)

		// chi requires middlewares before routes, so protected endpoints live in a group.
		admin.Group(func(protected chi.Router) {
			protected.Use(middleware.Authenticate(jwtManager), middleware.RequireAdmin)

			protected.Post("/registerScheme", schemesHandler.AdminCreate)
			protected.Put("/updateSchemeById/{id}", schemesHandler.AdminUpdate)
			protected.Delete("/deleteSchemeById/{id}", schemesHandler.AdminDelete)

			for _, kind := range []catalog.Kind{catalog.KindStates, catalog.KindCategories} {
				protected.Post("/"+string(kind), catalogHandler.Create(kind))
				protected.Put("/"+string(kind)+"/{id}", catalogHandler.Update(kind))
				protected.Delete("/"+string(kind)+"/{id}", catalogHandler.Delete(kind))
			}

			protected.Put("/users/{id}/password", usersHandler.AdminUpdatePassword)
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := closeCache(); err != nil {
		logger.Warn("cache close error", slog.String("error", err.Error()))
	}
}

// openCache prefers Redis when configured and falls back to an in-process cache.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, func() error, error) {
	if cfg.RedisURL == "" && cfg.RedisAddr == "" {
		logger.Info("redis disabled, using in-memory cache")
		return cache.NewMemory(), func() error { return nil }, nil
	}

	var redisCache *cache.RedisCache
	var err error
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
	} else {
		redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := redisCache.Ping(ctx); err != nil {
		return nil, nil, err
	}
	if cfg.RedisURL != "" {
		logger.Info("redis connected (url)")
	} else {
		logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
	}
	return redisCache, redisCache.Close, nil
}
