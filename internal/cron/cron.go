package cron

import (
	"context"
	"os"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/customeros/mailsetup/interfaces"
	cron_config "github.com/customeros/mailsetup/internal/cron/config"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/tracing"
	"github.com/customeros/mailsetup/internal/utils"
)

// CONSTANTS
const (
	// GroupOAuthSessions is the group for jobs touching the OAuth session store
	GroupOAuthSessions = "oauth_sessions"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupOAuthSessions: new(sync.Mutex),
	},
}

type CronManager struct {
	log      logger.Logger
	cron     *cronv3.Cron
	stopCh   chan struct{}
	jobIDs   map[string]cronv3.EntryID
	sessions interfaces.OAuthSessionStore
}

func NewCronManager(log logger.Logger, sessions interfaces.OAuthSessionStore) *CronManager {
	return &CronManager{
		log:      log,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		sessions: sessions,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		return err
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return err
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Register OAuth session purge job
	if cronConfig.CronSchedulePurgeOAuthSessions != "" && cm.sessions != nil {
		id, err := c.AddFunc(cronConfig.CronSchedulePurgeOAuthSessions, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupOAuthSessions].Lock()
			defer jobLocks.locks[GroupOAuthSessions].Unlock()
			cm.purgeExpiredOAuthSessions()
		})
		if err != nil {
			return err
		}
		cm.jobIDs["purge_oauth_sessions"] = id
		cm.log.Infof("Registered OAuth session purge job with schedule: %s", cronConfig.CronSchedulePurgeOAuthSessions)
	}

	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

func (cm *CronManager) purgeExpiredOAuthSessions() int {
	span, _ := tracing.StartTracerSpan(context.Background(), "CronManager.purgeExpiredOAuthSessions")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	purged := cm.sessions.PurgeExpired(utils.Now())
	span.LogKV("purged", purged)
	if purged > 0 {
		cm.log.Infof("Purged %d expired OAuth sessions", purged)
	}
	return purged
}
