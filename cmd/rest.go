package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/AzielCF/wa-gateway/core/config"
	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	"github.com/AzielCF/wa-gateway/domains/event"
	"github.com/AzielCF/wa-gateway/infrastructure/valkey"
	"github.com/AzielCF/wa-gateway/infrastructure/whatsapp"
	"github.com/AzielCF/wa-gateway/integrations/webhook"
	"github.com/AzielCF/wa-gateway/pkg/eventhub"
	"github.com/AzielCF/wa-gateway/pkg/msgworker"
	"github.com/AzielCF/wa-gateway/pkg/ratelimit"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/AzielCF/wa-gateway/session"
	"github.com/AzielCF/wa-gateway/ui/rest"
	"github.com/AzielCF/wa-gateway/ui/rest/middleware"
	"github.com/AzielCF/wa-gateway/ui/websocket"
	"github.com/AzielCF/wa-gateway/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the gateway HTTP API",
	Long:  `Starts the REST, SSE and WebSocket surfaces and manages one WhatsApp session per configured account.`,
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

// parseBasicAuth turns "user:pass" pairs into the basicauth users map.
func parseBasicAuth(pairs []string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, secret, ok := strings.Cut(pair, ":")
		if !ok || user == "" || secret == "" {
			return nil, fmt.Errorf("basic auth entry %q must be <user>:<secret>", pair)
		}
		users[user] = secret
	}
	return users, nil
}

func toAccounts(cfg []coreconfig.AccountConfig) []domainAccount.Account {
	accounts := make([]domainAccount.Account, 0, len(cfg))
	for _, a := range cfg {
		accounts = append(accounts, domainAccount.Account{ID: a.ID, DisplayName: a.DisplayName, Type: a.Type})
	}
	return accounts
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	if err := utils.CreateFolder(cfg.App.StoragePath); err != nil {
		logrus.Fatalf("[REST] Cannot create storage folder: %v", err)
	}
	serverID := utils.GetPersistentServerID(cfg.App.ServerID, cfg.App.StoragePath)
	startedAt := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var vk *valkey.Client
	if cfg.Database.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.ConfigFromDatabase(cfg.Database))
		if err != nil {
			if cfg.RateLimit.Store == "valkey" {
				logrus.Fatalf("[VALKEY] Rate limit store requires Valkey: %v", err)
			}
			logrus.Warnf("[VALKEY] Unavailable, continuing with in-memory state: %v", err)
		} else {
			vk = client
			logrus.WithField("address", cfg.Database.ValkeyAddress).Info("[VALKEY] Connected")
		}
	} else if cfg.RateLimit.Store == "valkey" {
		logrus.Fatal("[VALKEY] RATE_LIMIT_STORE=valkey needs VALKEY_ENABLED=true")
	}

	hub := eventhub.NewHub(cfg.Events.BufferSize)
	var publisher event.Publisher = hub
	if vk != nil {
		relay := valkey.NewEventRelay(vk, hub, serverID)
		go relay.Run(ctx)
		publisher = relay
	}

	limits := ratelimit.Limits{MaxPerHour: cfg.RateLimit.MaxPerHour, MaxPerDay: cfg.RateLimit.MaxPerDay}
	var limiterOpts []ratelimit.Option
	if vk != nil && cfg.RateLimit.Store == "valkey" {
		limiterOpts = append(limiterOpts, ratelimit.WithStore(ratelimit.NewValkeyStore(vk)))
	}
	rateLimiter := ratelimit.NewLimiter(limits, limiterOpts...)

	pool := msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start(ctx)

	forwarder := webhook.NewForwarder(webhook.Config{
		Secret:             cfg.Webhook.Secret,
		Timeout:            cfg.Webhook.Timeout,
		MaxAttempts:        cfg.Webhook.MaxAttempts,
		InsecureSkipVerify: cfg.Webhook.InsecureSkipVerify,
	}, cfg.WebhookURL)

	factory := whatsapp.NewFactory(cfg)
	manager := session.NewManager(toAccounts(cfg.Accounts), factory.NewClient, publisher, session.Options{
		QRTTL:          cfg.Session.QRTTL,
		ReconnectDelay: cfg.Session.ReconnectDelay,
		Forwarder:      forwarder,
		Jobs:           pool,
	})

	var pinger usecase.Pinger
	if vk != nil {
		pinger = vk
	}
	accountUsecase := usecase.NewAccountService(manager, rateLimiter)
	sendUsecase := usecase.NewSendService(manager, rateLimiter)
	healthUsecase := usecase.NewHealthService(usecase.HealthOptions{
		Sessions:          manager,
		Valkey:            pinger,
		WebhookConfigured: cfg.Webhook.BaseURL != "",
		Pool:              pool,
		Subscribers:       hub,
		ServerID:          serverID,
		Version:           cfg.App.Version,
		StartedAt:         startedAt,
	})

	fiberConfig := fiber.Config{
		AppName:      "WA Gateway",
		Network:      "tcp",
		ServerHeader: "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))
	if cfg.App.RequestsPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.App.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	users, err := parseBasicAuth(cfg.App.BasicAuth)
	if err != nil {
		logrus.Fatalf("[REST] %v", err)
	}

	api := app.Group(cfg.App.BasePath)
	if len(users) > 0 {
		api.Use(basicauth.New(basicauth.Config{
			Users: users,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
		}))
	} else {
		logrus.Warn("[REST] APP_BASIC_AUTH is empty, the API is open")
	}

	rest.InitRestAccount(api, accountUsecase)
	rest.InitRestSend(api, sendUsecase)
	rest.InitRestHealth(api, healthUsecase)
	rest.InitRestEvents(api, hub, cfg.Events.HeartbeatInterval)
	websocket.RegisterRoutes(api, hub, cfg.Events.HeartbeatInterval)

	if cfg.Session.AutoStart {
		go manager.Resume(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"server_id": serverID,
		"accounts":  len(cfg.Accounts),
		"port":      cfg.App.Port,
	}).Info("[REST] Gateway starting")

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}

	manager.Close()
	pool.Stop()
	hub.Close()
	factory.Close()
	if vk != nil {
		vk.Close()
	}
	logrus.Info("[REST] Shutdown complete")
}
