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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Jobs         JobsConfig
	Campaigns    CampaignsConfig
	Locks        LocksConfig
	Mail         MailConfig
	Realtime     RealtimeConfig
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
	Env          string `envconfig:"FANLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"FANLINK_APP_PORT" required:"true"`
	MetricsPort  string `envconfig:"FANLINK_METRICS_PORT" default:"9091"`
	LogLevel     string `envconfig:"FANLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FANLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FANLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FANLINK_DB_DSN"`
	Driver string `envconfig:"FANLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FANLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"FANLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FANLINK_DB_USER"`
	LegacyPassword string `envconfig:"FANLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"FANLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"FANLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FANLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FANLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FANLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FANLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FANLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FANLINK_REDIS_ADDR"`
	Password     string        `envconfig:"FANLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FANLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FANLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FANLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FANLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FANLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FANLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FANLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FANLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FANLINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FANLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FANLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	DispatchIdempotencyTTL time.Duration `envconfig:"FANLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FANLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FANLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FANLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"FANLINK_PUBSUB_EVENTS_TOPIC" default:"fl-domain-events"`
	EventsSubscription string `envconfig:"FANLINK_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FANLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FANLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FANLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type JobsConfig struct {
	PollInterval  time.Duration `envconfig:"FANLINK_JOBS_POLL_INTERVAL" default:"1s"`
	BatchSize     int           `envconfig:"FANLINK_JOBS_BATCH_SIZE" default:"20"`
	MaxAttempts   int           `envconfig:"FANLINK_JOBS_MAX_ATTEMPTS" default:"3"`
	RetryDeadline time.Duration `envconfig:"FANLINK_JOBS_RETRY_DEADLINE" default:"10m"`

	// VisibilityTimeout bounds how long a claimed job may sit running
	// before another worker replica may reclaim it.
	VisibilityTimeout time.Duration `envconfig:"FANLINK_JOBS_VISIBILITY_TIMEOUT" default:"2m"`
}

type CampaignsConfig struct {
	ReleaseInterval time.Duration `envconfig:"FANLINK_CAMPAIGNS_RELEASE_INTERVAL" default:"15s"`
	ExpandBatchSize int           `envconfig:"FANLINK_CAMPAIGNS_EXPAND_BATCH_SIZE" default:"100"`
	ClaimLockTTL    time.Duration `envconfig:"FANLINK_CAMPAIGNS_CLAIM_LOCK_TTL" default:"60s"`
}

type LocksConfig struct {
	FollowTTL    time.Duration `envconfig:"FANLINK_LOCK_FOLLOW_TTL" default:"15s"`
	NotifyJobTTL time.Duration `envconfig:"FANLINK_LOCK_NOTIFY_JOB_TTL" default:"30s"`
}

type MailConfig struct {
	APIKey      string        `envconfig:"FANLINK_MAIL_API_KEY"`
	DefaultFrom string        `envconfig:"FANLINK_MAIL_FROM_EMAIL"`
	BaseURL     string        `envconfig:"FANLINK_MAIL_BASE_URL" default:"https://api.sendgrid.com"`
	Timeout     time.Duration `envconfig:"FANLINK_MAIL_TIMEOUT" default:"10s"`
}

type RealtimeConfig struct {
	UserChannelPrefix string `envconfig:"FANLINK_REALTIME_USER_CHANNEL_PREFIX" default:"user"`
	PostsChannel      string `envconfig:"FANLINK_REALTIME_POSTS_CHANNEL" default:"posts"`
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
