package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FCM          FCMConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYRELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYRELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYRELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYRELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PAYRELAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PAYRELAY_DB_DSN"`
	Driver string `envconfig:"PAYRELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYRELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYRELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYRELAY_DB_USER"`
	LegacyPassword string `envconfig:"PAYRELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYRELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYRELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYRELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYRELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYRELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYRELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYRELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYRELAY_REDIS_ADDR"`
	Password     string        `envconfig:"PAYRELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYRELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYRELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYRELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYRELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYRELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYRELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PAYRELAY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PAYRELAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PAYRELAY_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PAYRELAY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"PAYRELAY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PAYRELAY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PAYRELAY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PAYRELAY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PAYRELAY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PAYRELAY_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYRELAY_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	DispatchIdempotencyTTL time.Duration `envconfig:"PAYRELAY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PAYRELAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PAYRELAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PAYRELAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TransactionsTopic        string `envconfig:"PAYRELAY_PUBSUB_TRANSACTIONS_TOPIC" default:"pr-transaction-events"`
	TransactionsSubscription string `envconfig:"PAYRELAY_PUBSUB_TRANSACTIONS_SUBSCRIPTION" required:"true"`
}

type FCMConfig struct {
	ServerKey   string        `envconfig:"PAYRELAY_FCM_SERVER_KEY"`
	Endpoint    string        `envconfig:"PAYRELAY_FCM_ENDPOINT" default:"https://fcm.googleapis.com/fcm/send"`
	SendTimeout time.Duration `envconfig:"PAYRELAY_FCM_SEND_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PAYRELAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PAYRELAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PAYRELAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"PAYRELAY_CRON_INTERVAL" default:"24h"`
	NotificationRetentionDays int           `envconfig:"PAYRELAY_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	DeviceInactiveDays        int           `envconfig:"PAYRELAY_CRON_DEVICE_INACTIVE_DAYS" default:"90"`
	OutboxRetentionDays       int           `envconfig:"PAYRELAY_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
