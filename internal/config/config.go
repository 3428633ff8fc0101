package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string        `env:"PET_SHOP_ADDR" env-default:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL" env-required:"true"`
	JWTSecret       string        `env:"JWT_SECRET" env-required:"true"`
	CookieKey       string        `env:"COOKIE_KEY"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	FrontendResult  string        `env:"FRONTEND_RESULT_URL" env-default:"http://localhost:3000/checkout/result"`
	CORSOrigins     string        `env:"CORS_ORIGINS" env-default:"http://localhost:3000"`

	NATS  NATS
	VNPay VNPay
}

// NATS is optional; an empty URL falls back to log-only notifications.
type NATS struct {
	URL     string `env:"NATS_URL"`
	Subject string `env:"NATS_SUBJECT" env-default:"order.placed"`
}

type VNPay struct {
	TmnCode    string        `env:"VNPAY_TMN_CODE"`
	HashSecret string        `env:"VNPAY_HASH_SECRET"`
	PayURL     string        `env:"VNPAY_PAY_URL" env-default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string        `env:"VNPAY_RETURN_URL" env-default:"http://localhost:8080/api/v1/payment/vnpay/return"`
	Expire     time.Duration `env:"VNPAY_EXPIRE" env-default:"15m"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if cfg.CookieKey == "" {
		slog.Warn("COOKIE_KEY not set, generating a random key; anonymous carts will not survive a restart")
		cfg.CookieKey = generateKey()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	key, err := base64.StdEncoding.DecodeString(c.CookieKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("COOKIE_KEY must be 32 bytes, base64 encoded")
	}
	if c.VNPay.Expire <= 0 {
		return fmt.Errorf("VNPAY_EXPIRE must be positive")
	}
	if (c.VNPay.TmnCode == "") != (c.VNPay.HashSecret == "") {
		return fmt.Errorf("VNPAY_TMN_CODE and VNPAY_HASH_SECRET must be set together")
	}
	return nil
}

// VNPayEnabled reports whether gateway checkout can be offered.
func (c Config) VNPayEnabled() bool {
	return c.VNPay.TmnCode != "" && c.VNPay.HashSecret != ""
}

func generateKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}
