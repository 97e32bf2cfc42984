// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// DriverSQLite はSQLiteストア。
	DriverSQLite = "sqlite"
	// DriverMongo はMongoDBストア。
	DriverMongo = "mongo"
)

// Config はアプリケーション設定。
type Config struct {
	// HTTP
	Port            string        `envconfig:"PORT" default:"5000"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// JWT
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL         time.Duration `envconfig:"JWT_TTL" default:"8760h"`
	CredentialMode string        `envconfig:"CREDENTIAL_MODE" default:"header"`
	CookieSecure   bool          `envconfig:"COOKIE_SECURE" default:"false"`
	// Store
	StoreDriver   string `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"scholarhub.db"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"scholarshipDB"`
	// Payment
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	PaymentCurrency string `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	// Listing
	PageSize int `envconfig:"PAGE_SIZE" default:"8"`
	TopLimit int `envconfig:"TOP_LIMIT" default:"8"`
	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load はカレントディレクトリの.envを読み込んだ後、環境変数から設定を読み込む。
// .envが存在しない場合は環境変数のみを使う。
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate は設定値の組み合わせを検証する。
func (c Config) Validate() error {
	switch c.CredentialMode {
	case "header", "cookie":
	default:
		return fmt.Errorf("CREDENTIAL_MODEはheaderかcookieを指定してください: %q", c.CredentialMode)
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATHが空です")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("STORE_DRIVER=mongoの場合はMONGO_URIが必要です")
		}
	default:
		return fmt.Errorf("STORE_DRIVERはsqliteかmongoを指定してください: %q", c.StoreDriver)
	}

	if c.PageSize <= 0 || c.TopLimit <= 0 {
		return errors.New("PAGE_SIZEとTOP_LIMITは1以上を指定してください")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTLは正の期間を指定してください")
	}
	return nil
}
