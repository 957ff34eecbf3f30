package config

import (
	"time"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type MailsetupDatabaseConfig struct {
	Host            string `env:"MAILSETUP_POSTGRES_HOST,required"`
	Port            string `env:"MAILSETUP_POSTGRES_PORT,required"`
	User            string `env:"MAILSETUP_POSTGRES_USER,required"`
	DBName          string `env:"MAILSETUP_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSETUP_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSETUP_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILSETUP_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILSETUP_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSETUP_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSETUP_POSTGRES_SSL_MODE" envDefault:"require"`
}

type DNSConfig struct {
	// empty means the servers listed in /etc/resolv.conf
	Servers []string      `env:"DNS_SERVERS" envSeparator:","`
	Timeout time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
}

type AutoconfigConfig struct {
	HTTPTimeout time.Duration `env:"AUTOCONFIG_HTTP_TIMEOUT" envDefault:"10s"`
	ISPDBURL    string        `env:"AUTOCONFIG_ISPDB_URL" envDefault:"https://autoconfig.thunderbird.net/v1.1"`
}

type OAuthConfig struct {
	RedirectURI string        `env:"OAUTH_REDIRECT_URI" envDefault:"http://127.0.0.1:12141"`
	SessionTTL  time.Duration `env:"OAUTH_SESSION_TTL" envDefault:"10m"`

	GmailClientID     string `env:"GMAIL_CLIENT_ID"`
	GmailClientSecret string `env:"GMAIL_CLIENT_SECRET"`
	GmailAuthURL      string `env:"GMAIL_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/auth"`
	GmailTokenURL     string `env:"GMAIL_TOKEN_URL" envDefault:"https://www.googleapis.com/oauth2/v4/token"`
	GmailProfileURL   string `env:"GMAIL_PROFILE_URL" envDefault:"https://www.googleapis.com/oauth2/v1/userinfo?alt=json"`

	Office365ClientID   string `env:"OFFICE365_CLIENT_ID"`
	Office365AuthURL    string `env:"OFFICE365_AUTH_URL" envDefault:"https://login.microsoftonline.com/common/oauth2/v2.0/authorize"`
	Office365TokenURL   string `env:"OFFICE365_TOKEN_URL" envDefault:"https://login.microsoftonline.com/common/oauth2/v2.0/token"`
	Office365ProfileURL string `env:"OFFICE365_PROFILE_URL" envDefault:"https://graph.microsoft.com/v1.0/me"`
}

type ConnectivityConfig struct {
	Timeout time.Duration `env:"CONNECTIVITY_TIMEOUT" envDefault:"30s"`
}
