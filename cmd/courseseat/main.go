package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseSeat/app/controllers"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/cache"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/database"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/enrollment"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/mail"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/notify"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/payment"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/router"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app, jobs := NewApplication(cfg)
	jobs.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(cfg.App.ListenAddr()); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down...")
	jobs.Stop()
	if err := app.ShutdownWithTimeout(cfg.App.ShutdownTimeout); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if err := cache.Close(); err != nil {
		log.Printf("Cache close error: %v", err)
	}
}

func NewApplication(cfg *config.Config) (*fiber.App, *jobqueue.Manager) {
	db := database.SetupDatabase(cfg.DB)
	cache.SetupCache(cfg.Cache)
	metrics.Register()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/courseseat to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	// limiter and token revocation state live in Redis when it is reachable
	var (
		store          ratelimit.Store
		memoryStore    *ratelimit.MemoryStore
		limiterStorage fiber.Storage
	)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	cacheErr := cache.Ping(pingCtx)
	cancel()
	if cacheErr == nil {
		store = ratelimit.NewRedisStore(cache.GetClient(), "courseseat:")
		limiterStorage = redis.New(redis.Config{
			Host:     cfg.Cache.Host,
			Port:     cfg.Cache.Port,
			Password: cfg.Cache.Password,
			Database: 1, // cache uses DB 0
			Reset:    false,
		})
	} else {
		log.Printf("Warning: cache unavailable, using in-process rate limit state: %v", cacheErr)
		memoryStore = ratelimit.NewMemoryStore(ratelimit.SystemClock{})
		store = memoryStore
	}

	tokens, err := security.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, store)
	if err != nil {
		log.Fatalf("admin tokens: %v", err)
	}

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()
	gateway := payment.NewGateway(cfg.Razorpay)
	dispatcher := notify.NewDispatcher(repos.Enrollment, mail.NewSMTPMailer(cfg.Mail))
	service := enrollment.NewService(repos.Session, repos.Enrollment, gateway, dispatcher)
	reconciler := payment.NewReconciler(repos.Enrollment, repos.WebhookEvent, gateway, dispatcher)
	activity := controllers.NewActivityLogger(repos.Activity)

	var sweeper jobqueue.Sweeper
	if memoryStore != nil {
		sweeper = memoryStore
	}
	jobs := jobqueue.NewManager(repos.Enrollment, sweeper, cfg.Jobs)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "CourseSeat",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// prometheus metrics
	if cfg.App.MetricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.App.MetricsUser: cfg.App.MetricsPassword,
			},
		}), adaptor.HTTPHandler(promhttp.Handler()))
	} else {
		log.Print("Warning: METRICS_PASSWORD not set, /metrics is disabled")
	}

	// SWAGGER / OPENAPI
	if basePath != "" {
		openAPICfg := swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}
		app.Use(swagger.New(openAPICfg))
	}

	// ROUTER
	router.InstallRouter(app, &router.Dependencies{
		Sessions:          controllers.NewSessionController(service),
		Enrollments:       controllers.NewEnrollmentController(service),
		Payments:          controllers.NewPaymentController(reconciler),
		AdminAuth:         controllers.NewAdminAuthController(repos.AdminUser, tokens, ratelimit.NewGuard(store, ratelimit.PolicyFromConfig(cfg.Auth)), activity, !cfg.IsDev()),
		AdminSessions:     controllers.NewAdminSessionController(repos.Session, activity),
		AdminEnrollments:  controllers.NewAdminEnrollmentController(repos.Enrollment, dispatcher, activity),
		Activity:          activity,
		Tokens:            tokens,
		Health:            healthCheck(db),
		LimiterStorage:    limiterStorage,
		RateLimit:         cfg.App.APIRateLimit,
		RateLimitDuration: time.Minute,
	})

	return app, jobs
}

func healthCheck(db *gorm.DB) router.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return errors.Join(errors.New("database unreachable"), err)
		}
		return nil
	}
}
