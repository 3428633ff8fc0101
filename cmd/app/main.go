package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jwtware "github.com/gofiber/jwt/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/checkout"
	"github.com/wichananm65/pet-shop-storefront/internal/config"
	"github.com/wichananm65/pet-shop-storefront/internal/database"
	"github.com/wichananm65/pet-shop-storefront/internal/logger"
	"github.com/wichananm65/pet-shop-storefront/internal/notify"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/payment/vnpay"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	notifier, closeNotifier := newNotifier(ctx, cfg, log)
	defer closeNotifier()

	gateway, err := newGateway(cfg, log)
	if err != nil {
		return err
	}

	userService := user.NewService(user.NewPostgresRepository(db))
	productService := product.NewService(product.NewPostgresRepository(db))
	cartService := cart.NewService(cart.NewPostgresRepository(db), productService)
	orderRepo := order.NewPostgresRepository(db)
	checkoutService := checkout.NewService(cartService, orderRepo, gateway, notifier, log)

	app := fiber.New(fiber.Config{
		AppName:      "pet-shop-storefront",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	app.Use(logger.Middleware(log))
	app.Use(encryptcookie.New(encryptcookie.Config{Key: cfg.CookieKey}))
	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		// bearer auth is optional; anonymous shoppers are identified by cookie
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
		},
	}))

	userHandler := user.NewHandler(userService, cfg.JWTSecret)
	userHandler.RegisterPublicRoutes(app)
	userHandler.RegisterProtectedRoutes(app)
	product.NewHandler(productService).RegisterPublicRoutes(app)
	cart.NewHandler(cartService).RegisterRoutes(app)
	checkout.NewHandler(checkoutService, cfg.FrontendResult, log).RegisterRoutes(app)
	orderHandler := order.NewHandler(order.NewService(orderRepo), order.NewGuard(orderRepo), log)
	orderHandler.RegisterRoutes(app)
	orderHandler.RegisterAdminRoutes(app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr, "vnpay", checkoutService.GatewayEnabled())
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		err := app.ShutdownWithTimeout(cfg.ShutdownTimeout)
		checkoutService.Drain()
		return err
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newNotifier falls back to log-only notifications when NATS is not
// configured or unreachable.
func newNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (notify.Notifier, func()) {
	if cfg.NATS.URL == "" {
		log.Info("NATS_URL not set, order notifications go to the log")
		return notify.NewLogNotifier(log), func() {}
	}
	p, err := notify.NewNatsPublisher(ctx, cfg.NATS.URL, cfg.NATS.Subject, log)
	if err != nil {
		log.Warn("nats unavailable, order notifications go to the log", "err", err)
		return notify.NewLogNotifier(log), func() {}
	}
	return p, p.Close
}

func newGateway(cfg config.Config, log *slog.Logger) (checkout.Gateway, error) {
	if !cfg.VNPayEnabled() {
		log.Warn("VNPAY_TMN_CODE not set, online payment disabled")
		return nil, nil
	}
	return vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
		Expire:     cfg.VNPay.Expire,
	})
}
