package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"livewatch.sqlite"`

	Poll struct {
		Endpoint              string `env:"STATUS_ENDPOINT" envDefault:"https://live.afreecatv.com/afreeca/player_live_api.php"`
		TimeoutSecs           int    `env:"STATUS_TIMEOUT_SECS" envDefault:"10"`
		Concurrency           int    `env:"POLL_CONCURRENCY" envDefault:"16"`
		DefaultIntervalMillis int64  `env:"POLL_DEFAULT_INTERVAL_MS" envDefault:"300000"`
	}
	Notify struct {
		Senders     []string `env:"NOTIFY_SENDERS" envSeparator:"," envDefault:"log"`
		TimeoutSecs int      `env:"NOTIFY_TIMEOUT_SECS" envDefault:"10"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		Recipient   string `env:"MAILGUN_RECIPIENT"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(log *zap.Logger) (*Config, error) {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env != "development" {
			return nil, err
		}
		cfg.log.Sugar().Infof("%s (credentials will be set to default in development env)", err)
		creds = map[string]string{"admin": "password"}
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Poll.TimeoutSecs <= 0:
		return errors.New("STATUS_TIMEOUT_SECS must be positive")
	case cfg.Poll.Concurrency <= 0:
		return errors.New("POLL_CONCURRENCY must be positive")
	case cfg.Poll.DefaultIntervalMillis <= 0:
		return errors.New("POLL_DEFAULT_INTERVAL_MS must be positive")
	}
	for i, name := range cfg.Notify.Senders {
		cfg.Notify.Senders[i] = strings.TrimSpace(name)
	}
	return nil
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	if len(creds) == 0 {
		return nil, errors.New("BASIC_AUTH_CREDS envvar should be filled with comma-separated values -- user1:pass1,user2:pass2")
	}

	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.SplitN(cred, ":", 2)
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
