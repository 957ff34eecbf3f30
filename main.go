package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/internal/database"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/repository"
	"github.com/customeros/mailsetup/server"
	"github.com/customeros/mailsetup/services/autoconfig"
	"github.com/customeros/mailsetup/services/dns"
	"github.com/customeros/mailsetup/services/provisioner"
)

func main() {
	app := &cli.App{
		Name:  "mailsetup",
		Usage: "Mail account provisioning service",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:      "resolve",
				Usage:     "Print the discovered connection template for an email address",
				ArgsUsage: "<email>",
				Action:    runResolve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(_ *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return errors.Wrap(err, "config initialization failed")
	}

	mailsetupDB, err := database.InitMailsetupDatabase(cfg.MailsetupDatabaseConfig)
	if err != nil {
		return errors.Wrap(err, "mailsetup database initialization failed")
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailsetup starting up...")

	srv, err := server.NewServer(cfg, mailsetupDB)
	if err != nil {
		return errors.Wrap(err, "server setup failed")
	}

	if err := srv.Run(); err != nil {
		return errors.Wrap(err, "server startup failed")
	}

	log.Println("Shutdown complete")
	return nil
}

func runMigrate(_ *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return errors.Wrap(err, "config initialization failed")
	}

	mailsetupDB, err := database.InitMailsetupDatabase(cfg.MailsetupDatabaseConfig)
	if err != nil {
		return errors.Wrap(err, "mailsetup database initialization failed")
	}

	if err := repository.MigrateDB(cfg.MailsetupDatabaseConfig, mailsetupDB); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	log.Println("Database migration completed successfully")
	return nil
}

func runResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: mailsetup resolve <email>", 2)
	}

	cfg, err := config.InitResolverConfig()
	if err != nil {
		return errors.Wrap(err, "config initialization failed")
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer appLogger.Sync()

	// expansion only, nothing is validated or stored
	resolver := provisioner.NewProvisionerService(
		appLogger,
		dns.NewMxResolver(appLogger, cfg.DNSConfig),
		autoconfig.NewAutoconfigFetcher(appLogger, cfg.AutoconfigConfig),
		nil, nil, nil, nil, nil,
	)

	account, err := resolver.ExpandAccount(context.Background(), &models.Account{EmailAddress: c.Args().First()})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
