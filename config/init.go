package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/tracing"
)

type Config struct {
	AppConfig               *AppConfig
	Logger                  *logger.Config
	Tracing                 *tracing.JaegerConfig
	MailsetupDatabaseConfig *MailsetupDatabaseConfig
	DNSConfig               *DNSConfig
	AutoconfigConfig        *AutoconfigConfig
	OAuthConfig             *OAuthConfig
	ConnectivityConfig      *ConnectivityConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:               &AppConfig{},
		Logger:                  &logger.Config{},
		Tracing:                 &tracing.JaegerConfig{},
		MailsetupDatabaseConfig: &MailsetupDatabaseConfig{},
		DNSConfig:               &DNSConfig{},
		AutoconfigConfig:        &AutoconfigConfig{},
		OAuthConfig:             &OAuthConfig{},
		ConnectivityConfig:      &ConnectivityConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// InitResolverConfig loads only what the offline resolve command needs.
func InitResolverConfig() (*Config, error) {
	config := &Config{
		Logger:           &logger.Config{},
		DNSConfig:        &DNSConfig{},
		AutoconfigConfig: &AutoconfigConfig{},
	}

	if err := godotenv.Load(); err != nil {
		log.Print("Unable to load .env file")
	}

	if err := env.Parse(config); err != nil {
		return nil, err
	}

	return config, nil
}
