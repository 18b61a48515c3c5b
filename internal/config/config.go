// Package config provides the structures and the loader for the service
// configuration. The config file location is taken from CONFIG_PATH.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration of the billing service.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Providers               `yaml:"providers"`
	RabbitMQ                `yaml:"rabbitmq"`
	JWTToken                `yaml:"jwttoken"`
	Sweeper                 `yaml:"sweeper"`
}

// HTTPServer holds the HTTP listener settings.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8084"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection holds the cache connection settings.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Providers holds the payment-provider secrets used to verify inbound
// webhooks. SkipVerification is honoured only outside prod.
type Providers struct {
	FlutterwaveSecretHash string `yaml:"flutterwave_secret_hash" env:"FLW_SECRET_HASH"`
	PagaHMACKey           string `yaml:"paga_hmac_key" env:"PAGA_HMAC_KEY"`
	WebhookVerifyToken    string `yaml:"webhook_verify_token" env:"WEBHOOK_VERIFY_TOKEN"`
	SkipVerification      bool   `yaml:"skip_verification" env-default:"false"`
}

// RabbitMQ holds the message-broker connection settings.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
}

// JWTToken holds the key used to validate tokens issued by the platform
// auth service for the school-admin API.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Sweeper holds the expiry-sweep settings.
type Sweeper struct {
	SweepInterval  time.Duration `yaml:"sweep_interval" env-default:"1h"`
	ExpiringWithin time.Duration `yaml:"expiring_within" env-default:"72h"`
}

// MustLoad loads the configuration from CONFIG_PATH or exits.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// VerificationSkipped reports whether webhook signature verification may
// be skipped for this run. The branch is config-gated and never taken
// in prod.
func (c *Config) VerificationSkipped() bool {
	return c.Env != "prod" && c.Providers.SkipVerification
}
