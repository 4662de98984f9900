package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jackmine/storefront/app/controllers"
	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/cache"
	"github.com/jackmine/storefront/internal/pkg/database"
	"github.com/jackmine/storefront/internal/pkg/env"
	"github.com/jackmine/storefront/internal/pkg/gameserver"
	"github.com/jackmine/storefront/internal/pkg/hcaptcha"
	"github.com/jackmine/storefront/internal/pkg/jobqueue"
	"github.com/jackmine/storefront/internal/pkg/mail"
	"github.com/jackmine/storefront/internal/pkg/router"
	"github.com/jackmine/storefront/internal/pkg/session"
)

func main() {
	app, manager := NewApplication()

	ctx, stop := context.WithCancel(context.Background())
	manager.Start(ctx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Info("[Main] Shutdown signal received")
		stop()
		manager.Stop()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Errorf("[Main] Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	session.NewSessionStore()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	statusCache := cache.NewJSONStore(cache.GetClient())

	// background grants and receipts
	queue := jobqueue.NewQueue(cache.GetClient(), env.GetEnvInt("JOBQUEUE_WORKERS", 3), jobqueue.Dependencies{
		Accounts: gameserver.NewClientFromEnv(),
		Plans:    billing.NewStatusResolver(repos.Subscription, repos.Order),
		Mailer:   mail.NewSMTPSenderFromEnv(),
	})
	manager := jobqueue.NewManager(queue, jobqueue.ManagerConfigFromEnv(repos.Subscription, statusCache))

	gateway := billing.NewStripeGatewayFromEnv()
	captcha := hcaptcha.NewVerifierFromEnv()
	controllers.InitializeStorefrontController(controllers.StorefrontDeps{
		Checkout: billing.NewCheckoutServiceFromEnv(gateway),
		Status:   billing.NewStatusResolver(repos.Subscription, repos.Order, billing.WithResolverCache(statusCache, 0)),
		Webhooks: billing.NewReconcilerFromEnv(gateway, repos,
			billing.WithEnqueuer(jobqueue.NewEnqueuer(queue)),
			billing.WithStatusCache(statusCache),
		),
		Captcha:        captcha,
		CaptchaSiteKey: captcha.SiteKey,
		ServerAddress:  env.GetEnv("GAMESERVER_ADDRESS", ""),
	})

	basePath := findBasePath()

	app := fiber.New(fiber.Config{
		// webhook payloads and checkout forms are small
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, manager
}

// findBasePath locates the project root whether started from the root or from cmd/storefront.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
