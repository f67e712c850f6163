package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/quazian/internal/config"
	"github.com/mind-engage/quazian/internal/db"
	"github.com/mind-engage/quazian/internal/platform/logger"
	syncx "github.com/mind-engage/quazian/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:          "quazianctl",
	Short:        "Operator commands for quazian",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("db-driver", "", "sqlite or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (overrides DB_DSN)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(addProfCmd)
	rootCmd.AddCommand(eventsCmd)
}

// env holds what every command shares: configuration, a logger and an open DB.
type env struct {
	cfg    config.Config
	log    *logger.Logger
	db     *sql.DB
	driver db.Driver
}

func (e *env) events() *syncx.EventRepo {
	return syncx.NewEventRepo(e.db).WithSite(e.cfg.SiteID)
}

func (e *env) Close() {
	_ = e.db.Close()
	e.log.Sync()
}

// openEnv loads configuration (flags win over the environment) and opens the
// database, creating the schema when missing.
func openEnv(cmd *cobra.Command) (*env, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg := config.Load(envFile)
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db-dsn"); v != "" {
		cfg.DBDSN = v
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	dbh, err := db.Open(cmd.Context(), driver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, log: log, db: dbh, driver: driver}, nil
}
