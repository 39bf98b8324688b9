package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/coursehub/coursehub/internal/app"
	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/enrollments"
	"github.com/coursehub/coursehub/internal/lessons"
	"github.com/coursehub/coursehub/internal/observability"
	"github.com/coursehub/coursehub/internal/platform/cache"
	"github.com/coursehub/coursehub/internal/platform/db"
	"github.com/coursehub/coursehub/internal/shared"
	"github.com/coursehub/coursehub/internal/users"
	"github.com/coursehub/coursehub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, sign-in throttle disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	mailer := jobs.NewMailer(queueClient)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	codec := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTTTL)
	throttle := auth.NewThrottle(redisClient, logger, cfg.SignInMaxAttempts, cfg.SignInWindow)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, codec, throttle, mailer, auditLogger, logger)
	authService.SetMetrics(metrics)
	authHandler := auth.NewHandler(logger, authService)
	authenticator := auth.Middleware{Codec: codec, Resolver: authRepo, Logger: logger}

	coursesRepo := courses.NewRepository(pool)
	coursesService := courses.NewService(coursesRepo, auditLogger, logger)
	coursesHandler := courses.NewHandler(logger, coursesService)

	lessonsRepo := lessons.NewRepository(pool)
	lessonsService := lessons.NewService(lessonsRepo, coursesRepo)
	lessonsHandler := lessons.NewHandler(logger, lessonsService)

	enrollmentsRepo := enrollments.NewRepository(pool)
	enrollmentsService := enrollments.NewService(enrollmentsRepo, coursesRepo)
	enrollmentsHandler := enrollments.NewHandler(logger, enrollmentsService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, mailer, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		Metrics:            metrics,
		AuthHandler:        authHandler,
		CoursesHandler:     coursesHandler,
		LessonsHandler:     lessonsHandler,
		EnrollmentsHandler: enrollmentsHandler,
		UsersHandler:       usersHandler,
		JobsHandler:        jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
