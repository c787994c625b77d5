package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service and the client.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Postgres  PostgresConfig  `envPrefix:"POSTGRES_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Logger    LoggerConfig    `envPrefix:"LOG_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Webhook   WebhookConfig   `envPrefix:"WEBHOOK_"`
	Maps      MapsConfig      `envPrefix:"MAPS_"`
	Messaging MessagingConfig `envPrefix:"MESSAGING_"`
	Booking   BookingConfig   `envPrefix:"BOOKING_"`
	Client    ClientConfig    `envPrefix:"CLIENT_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"NAME"    envDefault:"rental-service"`
	Env                   string `env:"ENV"     envDefault:"development"`
	Host                  string `env:"HOST"    envDefault:"0.0.0.0"`
	Port                  string `env:"PORT"    envDefault:"8080"`
	Version               string `env:"VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"DSN"`
	MaxConns       int32  `env:"MAX_CONNS"      envDefault:"10"`
	MinConns       int32  `env:"MIN_CONNS"      envDefault:"2"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir  string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ConnMaxIdleSec int32  `env:"CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"CONN_MAX_LIFE_SECONDS" envDefault:"300"`
	// ConnectAttempts bounds startup retries while the database comes up.
	ConnectAttempts uint `env:"CONNECT_ATTEMPTS" envDefault:"5"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"127.0.0.1:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
	PoolSize int    `env:"POOL_SIZE" envDefault:"10"`
	// ConnectAttempts bounds startup pings; Redis stays optional after that.
	ConnectAttempts uint `env:"CONNECT_ATTEMPTS" envDefault:"3"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `env:"JWT_SECRET"               envDefault:"dev-secret"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"60"`
	BcryptCost            int    `env:"BCRYPT_COST"              envDefault:"12"`
	DefaultRole           string `env:"DEFAULT_ROLE"             envDefault:"Customer"`
}

// WebhookConfig controls outbound event delivery.
type WebhookConfig struct {
	URLs        []string      `env:"URLS" envSeparator:","`
	Secret      string        `env:"SECRET"`
	Workers     int           `env:"WORKERS"      envDefault:"2"`
	QueueSize   int           `env:"QUEUE_SIZE"   envDefault:"256"`
	MaxAttempts uint          `env:"MAX_ATTEMPTS" envDefault:"5"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

// MapsConfig points at the geocoding and routing providers.
type MapsConfig struct {
	GeocodeURL string        `env:"GEOCODE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	RouteURL   string        `env:"ROUTE_URL"   envDefault:"https://router.project-osrm.org"`
	APIKey     string        `env:"API_KEY"`
	UserAgent  string        `env:"USER_AGENT"  envDefault:"rental-service/1.0"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"8s"`
	CacheTTL   time.Duration `env:"CACHE_TTL"   envDefault:"24h"`
}

// MessagingConfig points at the WhatsApp/SMS gateway.
type MessagingConfig struct {
	URL         string        `env:"URL"`
	Token       string        `env:"TOKEN"`
	CountryCode string        `env:"COUNTRY_CODE" envDefault:"62"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

// BookingConfig holds the tariff applied when staff do not quote a price.
// Amounts are in the smallest currency unit.
type BookingConfig struct {
	DailyRate      int64 `env:"DAILY_RATE"       envDefault:"350000"`
	DriverDailyFee int64 `env:"DRIVER_DAILY_FEE" envDefault:"150000"`
}

// ClientConfig configures the rentalctl client.
type ClientConfig struct {
	APIURL       string        `env:"API_URL"            envDefault:"http://127.0.0.1:8080"`
	StatePath    string        `env:"STATE_PATH"         envDefault:".rentalctl.db"`
	PolicyPath   string        `env:"POLICY_PATH"`
	ReadyTimeout time.Duration `env:"READY_TIMEOUT"      envDefault:"5s"`
	FlagTTL      time.Duration `env:"FLAG_TTL"           envDefault:"30m"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT"       envDefault:"15s"`
	AllowedRoles []string      `env:"ALLOWED_ROLES"      envSeparator:","`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parses configuration from the given variables only. Used by tests.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}
