package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func validConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "mailsetup",
		DBName:   "mailsetup",
		Password: "password",
		SSLMode:  "disable",
	}
}

func TestBuildDSN(t *testing.T) {
	// Act
	dsn, err := buildDSN(validConfig())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=mailsetup password=password dbname=mailsetup sslmode=disable", dsn)
}

func TestBuildDSN_InvalidConfig(t *testing.T) {
	noHost := validConfig()
	noHost.Host = ""
	badPort := validConfig()
	badPort.Port = "postgres"

	for name, cfg := range map[string]*DatabaseConfig{"nil": nil, "no host": noHost, "bad port": badPort} {
		t.Run(name, func(t *testing.T) {
			_, err := buildDSN(cfg)
			assert.Error(t, err)
		})
	}
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Silent, gormLogLevel("SILENT"))
	assert.Equal(t, logger.Warn, gormLogLevel("verbose"))
}
