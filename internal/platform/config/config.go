package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Database
	DBHost       string `envconfig:"DB_HOST" default:"localhost"`
	DBPort       string `envconfig:"DB_PORT" default:"5432"`
	DBUser       string `envconfig:"DB_USER" default:"postgres"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME" default:"activity_booking"`
	DBSSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"10"`
	DBMigrate    bool   `envconfig:"DB_MIGRATE" default:"true"`

	// Redis
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int           `envconfig:"REDIS_DB" default:"0"`
	SlotCacheTTL time.Duration `envconfig:"SLOT_CACHE_TTL" default:"30s"`

	// Messaging; an empty URL dispatches notifications in-process.
	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"booking.exchange"`
	NotifyQueue    string `envconfig:"NOTIFY_QUEUE" default:"notification.q"`

	// HTTP
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Observability
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"activity-booking"`

	// Money
	TaxRate                   decimal.Decimal `envconfig:"TAX_RATE" default:"0.10"`
	ServiceFee                decimal.Decimal `envconfig:"SERVICE_FEE" default:"5.00"`
	PlatformCommissionRate    decimal.Decimal `envconfig:"PLATFORM_COMMISSION_RATE" default:"0.15"`
	SalespersonCommissionRate decimal.Decimal `envconfig:"SALESPERSON_COMMISSION_RATE" default:"0.05"`
	Currency                  string          `envconfig:"CURRENCY" default:"EUR"`
	Timezone                  string          `envconfig:"TIMEZONE" default:"UTC"`

	// Capacity
	AvailabilityTimeout time.Duration `envconfig:"AVAILABILITY_TIMEOUT" default:"10s"`
	ReservationTTL      time.Duration `envconfig:"RESERVATION_TTL" default:"30m"`
	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	DemoFallback        bool          `envconfig:"DEMO_FALLBACK" default:"false"`

	// Notifications
	TelegramBotToken    string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL      string        `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	TelegramAdminChatID string        `envconfig:"TELEGRAM_ADMIN_CHAT_ID"`
	TwilioAccountSID    string        `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken     string        `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber    string        `envconfig:"TWILIO_FROM_NUMBER"`
	TwilioWhatsAppFrom  string        `envconfig:"TWILIO_WHATSAPP_FROM"`
	TwilioAPIURL        string        `envconfig:"TWILIO_API_URL"`
	NotifyTimeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (Config, bool, error) {
	loadedFile := false
	if envFile != "" {
		if err := godotenv.Load(envFile); err == nil {
			loadedFile = true
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, false, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, loadedFile, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, loadedFile, err
	}
	return c, loadedFile, nil
}

func (c Config) Validate() error {
	one := decimal.NewFromInt(1)
	rates := map[string]decimal.Decimal{
		"TAX_RATE":                    c.TaxRate,
		"PLATFORM_COMMISSION_RATE":    c.PlatformCommissionRate,
		"SALESPERSON_COMMISSION_RATE": c.SalespersonCommissionRate,
	}
	for name, r := range rates {
		if r.IsNegative() || r.GreaterThan(one) {
			return fmt.Errorf("%s must be within [0, 1], got %s", name, r)
		}
	}
	if c.PlatformCommissionRate.Add(c.SalespersonCommissionRate).GreaterThan(one) {
		return errors.New("platform and salesperson commission rates exceed 100%")
	}
	if c.ServiceFee.IsNegative() {
		return errors.New("SERVICE_FEE must not be negative")
	}
	if c.ReservationTTL > 0 && c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive when RESERVATION_TTL is set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}
