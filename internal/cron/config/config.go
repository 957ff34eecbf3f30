package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Expired OAuth session purge, every minute
	CronSchedulePurgeOAuthSessions string `env:"CRON_SCHEDULE_PURGE_OAUTH_SESSIONS" envDefault:"30 * * * * *"`
}
