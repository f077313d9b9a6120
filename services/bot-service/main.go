package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rohianon/chatcommerce/pkg/auth"
	"github.com/Rohianon/chatcommerce/pkg/cache"
	"github.com/Rohianon/chatcommerce/pkg/config"
	"github.com/Rohianon/chatcommerce/pkg/database"
	"github.com/Rohianon/chatcommerce/pkg/events"
	"github.com/Rohianon/chatcommerce/pkg/giftcard"
	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/metrics"
	"github.com/Rohianon/chatcommerce/pkg/middleware"
	"github.com/Rohianon/chatcommerce/pkg/payment"
	"github.com/Rohianon/chatcommerce/pkg/response"
	"github.com/Rohianon/chatcommerce/pkg/swagger"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/Rohianon/chatcommerce/pkg/vtu"
	"github.com/Rohianon/chatcommerce/pkg/whatsapp"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/catalog"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/dispatcher"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/flow"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/handler"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/ledger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/repository"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/review"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/session"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/wallet"
)

const serviceName = "bot-service"

type userStore interface {
	dispatcher.Users
	review.Users
}

type catalogSource interface {
	catalog.Source
	Seed(ctx context.Context) error
}

// stores groups the storage backends chosen at startup.
type stores struct {
	users   userStore
	wallet  wallet.Wallet
	ledger  ledger.Store
	catalog catalogSource
}

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		logger.Init(serviceName, "info", true)
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("Starting Bot Service")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tp, err := telemetry.Init(ctx, &telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		CollectorURL: cfg.Telemetry.CollectorURL,
		Environment:  os.Getenv("ENVIRONMENT"),
		Enabled:      cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to flush traces")
		}
	}()

	var db *pgxpool.Pool
	if cfg.Database.Enabled {
		db, err = database.NewPool(ctx, &database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		logger.Info().Msg("Connected to database")

		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	st := openStores(db)
	if err := st.catalog.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed catalog")
	}

	sessionStore, closeSessions := openSessionStore(ctx, cfg)
	defer closeSessions()
	sessions := session.NewManager(sessionStore, session.Config{
		Timeout:     cfg.Session.Timeout,
		LockTimeout: cfg.Session.LockTimeout,
	})

	var publisher events.Publisher
	var subscriber *events.KafkaSubscriber
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		subscriber = events.NewKafkaSubscriber(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		defer subscriber.Close()
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Connected to Kafka")
	} else {
		logger.Warn().Msg("Kafka not configured, events will not be published")
	}

	messenger := newMessenger(cfg)
	paystack, flutterwave := newGateways(cfg)

	products := catalog.New(st.catalog)
	deps := &flow.Deps{
		Sessions:    sessions,
		Wallet:      st.wallet,
		Ledger:      st.ledger,
		Catalog:     products,
		Fulfillment: newFulfillment(cfg),
		GiftCards:   newGiftCardVerifier(cfg),
		Paystack:    paystack,
		Flutterwave: flutterwave,
		Publisher:   publisher,
		Settings: flow.Settings{
			BotName:         cfg.Bot.Name,
			CurrencySymbol:  cfg.Bot.CurrencySymbol,
			SupportContact:  cfg.Bot.SupportContact,
			Limits:          cfg.Limits,
			Bank:            cfg.Payment.Bank,
			ProviderTimeout: cfg.Providers.Timeout,
		},
	}
	menu, flows := flow.Routes(deps)
	d := dispatcher.New(st.users, sessions, messenger, menu, flows, dispatcher.Config{
		MaintenanceMode: cfg.Bot.MaintenanceMode,
		SupportContact:  cfg.Bot.SupportContact,
	})

	reviews := review.NewService(st.ledger, st.wallet, st.users, messenger, publisher, review.Config{
		CurrencySymbol: cfg.Bot.CurrencySymbol,
	}).WithGateways(paystack, flutterwave)

	if subscriber != nil {
		if err := subscriber.Subscribe(ctx, events.TopicPaymentConfirmed, reviews.HandlePaymentConfirmed); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to payment confirmations")
		}
	}

	jwtSecret := cfg.Admin.JWTSecret
	if jwtSecret == "" {
		logger.Warn().Msg("admin.jwt_secret not set, using development secret")
		jwtSecret = "dev-secret-change-in-production"
	}
	tokens := auth.NewJWTManager(&auth.Config{Secret: jwtSecret, TokenTTL: cfg.Admin.TokenTTL})

	h := handler.New(d, reviews, st.users, products, tokens, handler.Config{
		VerifyToken:       cfg.WhatsApp.Meta.VerifyToken,
		AppSecret:         cfg.WhatsApp.Meta.AppSecret,
		PaystackSecret:    cfg.Payment.Paystack.SecretKey,
		AdminUsername:     cfg.Admin.Username,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})

	app := fiber.New(fiber.Config{
		AppName:      "ChatCommerce Bot Service",
		ErrorHandler: response.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.SecurityHeaders())
	app.Use(metrics.Middleware(metrics.Config{
		ServiceName: serviceName,
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": serviceName})
	})
	app.Get("/metrics", metrics.Handler())

	app.Use("/admin", middleware.RateLimiter(middleware.RateLimitConfig{
		Max:      60,
		Duration: time.Minute,
	}))
	h.Routes(app)

	if cfg.Server.Docs {
		swagger.Mount(app, swagger.Config{
			SpecFS:   handler.OpenAPI(),
			SpecFile: "admin.yaml",
			Title:    "Bot Admin API",
		})
		logger.Info().Msg("Admin API reference served at /docs")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Bot Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Bot Service")
	stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

func openStores(db *pgxpool.Pool) stores {
	if db != nil {
		return stores{
			users:   repository.NewUserRepository(db),
			wallet:  wallet.NewPostgresWallet(db),
			ledger:  ledger.NewPostgresStore(db),
			catalog: repository.NewCatalogRepository(db),
		}
	}

	logger.Warn().Msg("Database disabled, using in-memory stores")
	users := repository.NewMemoryUserRepository()
	return stores{
		users:   users,
		wallet:  wallet.NewMemoryWallet(users),
		ledger:  ledger.NewMemoryStore(),
		catalog: repository.NewMemoryCatalogRepository(repository.DefaultGiftCardProducts(), repository.DefaultDataPlans()),
	}
}

// openSessionStore prefers Redis. The in-memory fallback is swept by the
// cron reaper since nothing else expires its entries.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func()) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")
		return session.NewRedisStore(rc), func() {
			if err := rc.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close Redis")
			}
		}
	}

	logger.Warn().Msg("Redis disabled, using in-memory sessions")
	store := session.NewMemoryStore()
	reaper, err := session.StartReaper(cfg.Session.ReapSchedule, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start session reaper")
	}
	return store, func() { <-reaper.Stop().Done() }
}

func newMessenger(cfg *config.Config) dispatcher.Messenger {
	wa := cfg.WhatsApp
	switch {
	case wa.Provider == "meta" && wa.Meta.AccessToken != "":
		logger.Info().Msg("Using Meta WhatsApp Cloud API")
		return whatsapp.NewMetaClient(&whatsapp.MetaConfig{
			BaseURL:       wa.Meta.BaseURL,
			APIVersion:    wa.Meta.APIVersion,
			PhoneNumberID: wa.Meta.PhoneNumberID,
			AccessToken:   wa.Meta.AccessToken,
			Timeout:       cfg.Providers.Timeout,
		})
	case wa.Provider == "twilio" && wa.Twilio.AuthToken != "":
		logger.Info().Msg("Using Twilio WhatsApp API")
		return whatsapp.NewTwilioClient(&whatsapp.TwilioConfig{
			BaseURL:    wa.Twilio.BaseURL,
			AccountSID: wa.Twilio.AccountSID,
			AuthToken:  wa.Twilio.AuthToken,
			From:       wa.Twilio.From,
			Timeout:    cfg.Providers.Timeout,
		})
	default:
		logger.Warn().Str("provider", wa.Provider).Msg("Using mock WhatsApp client")
		return whatsapp.NewMockClient()
	}
}

func newFulfillment(cfg *config.Config) flow.Fulfillment {
	vt := cfg.Providers.VTPass
	if vt.APIKey == "" {
		logger.Warn().Msg("Using mock VTU client")
		return vtu.NewMockClient()
	}
	return vtu.NewClient(&vtu.Config{
		BaseURL:   vt.BaseURL,
		APIKey:    vt.APIKey,
		SecretKey: vt.SecretKey,
		Timeout:   cfg.Providers.Timeout,
	})
}

func newGiftCardVerifier(cfg *config.Config) flow.GiftCardVerifier {
	gc := cfg.Providers.GiftCard
	if gc.APIKey == "" {
		logger.Warn().Int64("auto_approve_max", gc.AutoApproveMax).Msg("Using mock gift card verifier")
		return giftcard.NewMockClient(gc.AutoApproveMax)
	}
	return giftcard.NewClient(&giftcard.Config{
		BaseURL: gc.BaseURL,
		APIKey:  gc.APIKey,
		Timeout: cfg.Providers.Timeout,
	})
}

func newGateways(cfg *config.Config) (payment.Gateway, payment.Gateway) {
	var paystack, flutterwave payment.Gateway

	ps := cfg.Payment.Paystack
	if ps.SecretKey == "" {
		logger.Warn().Msg("Using mock Paystack gateway")
		paystack = payment.NewMockGateway(payment.GatewayPaystack)
	} else {
		paystack = payment.NewPaystackClient(&payment.Config{
			BaseURL:     ps.BaseURL,
			SecretKey:   ps.SecretKey,
			CallbackURL: ps.CallbackURL,
			Timeout:     cfg.Providers.Timeout,
		})
	}

	fw := cfg.Payment.Flutterwave
	if fw.SecretKey == "" {
		logger.Warn().Msg("Using mock Flutterwave gateway")
		flutterwave = payment.NewMockGateway(payment.GatewayFlutterwave)
	} else {
		flutterwave = payment.NewFlutterwaveClient(&payment.Config{
			BaseURL:     fw.BaseURL,
			SecretKey:   fw.SecretKey,
			CallbackURL: fw.CallbackURL,
			Timeout:     cfg.Providers.Timeout,
		})
	}

	return paystack, flutterwave
}
