package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string `env:"HTTP_PORT" envDefault:"8080"`
	AppHost             string `env:"APP_HOST" envDefault:"localhost"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	PasswordHasher      string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`

	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	MailFrom         string        `env:"MAIL_FROM"`
	MailFromName     string        `env:"MAIL_FROM_NAME" envDefault:"Diaspora Invest"`
	MailSendTimeout  time.Duration `env:"MAIL_SEND_TIMEOUT" envDefault:"30s"`
	SMTPHost         string        `env:"SMTP_HOST"`
	SMTPPort         int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string        `env:"SMTP_USER"`
	SMTPPass         string        `env:"SMTP_PASS"`
	SMTPUseTLS       bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	MailerSendAPIKey string        `env:"MAILERSEND_API_KEY"`

	SignupMailLimit  int           `env:"SIGNUP_MAIL_LIMIT" envDefault:"3"`
	SignupMailWindow time.Duration `env:"SIGNUP_MAIL_WINDOW" envDefault:"10m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	NATSURL            string   `env:"NATS_URL"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PublicBaseURL arma la URL base usada en los enlaces enviados por correo.
func (c *Config) PublicBaseURL() string {
	return "http://" + c.AppHost + ":" + c.HTTPPort
}
