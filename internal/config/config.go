package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	AppName       string `env:"APP_NAME" envDefault:"Credential Service"`

	JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"2m"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	HashWorkers     int           `env:"HASH_WORKERS" envDefault:"0"`
	HideUnknownUser bool          `env:"HIDE_UNKNOWN_USER" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ImageStorage string `env:"IMAGE_STORAGE" envDefault:"local"`
	ImageDir     string `env:"IMAGE_DIR" envDefault:"./public/images"`
	ImageBaseURL string `env:"IMAGE_BASE_URL" envDefault:"/images"`
	S3Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket     string `env:"S3_BUCKET"`
	S3AccessKey  string `env:"S3_ACCESS_KEY"`
	S3SecretKey  string `env:"S3_SECRET_KEY"`
	S3Endpoint   string `env:"S3_ENDPOINT"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
