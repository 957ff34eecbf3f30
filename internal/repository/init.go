package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/models"
)

type Repositories struct {
	ProvisioningAttemptRepository interfaces.ProvisioningAttemptRepository
}

func InitRepositories(mailsetupDB *gorm.DB) *Repositories {
	return &Repositories{
		ProvisioningAttemptRepository: NewProvisioningAttemptRepository(mailsetupDB),
	}
}

func MigrateDB(dbConfig *config.MailsetupDatabaseConfig, mailsetupDB *gorm.DB) error {
	db, err := mailsetupDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = mailsetupDB.AutoMigrate(
		&models.ProvisioningAttempt{},
	)

	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
