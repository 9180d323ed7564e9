package cmd

import (
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/templui/sharebox/internal/db"
)

var (
	dbDriver     string
	dbConnection string
)

// AddDatabaseFlags registers --driver and --dsn, defaulting to DB_DRIVER and
// DB_CONNECTION (a .env file in the working directory is honoured).
func AddDatabaseFlags(root *cobra.Command) {
	_ = godotenv.Load()

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DB_CONNECTION")
	if dsn == "" {
		dsn = "./data/sharebox.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	}

	root.PersistentFlags().StringVar(&dbDriver, "driver", driver, "database driver (sqlite or pgx)")
	root.PersistentFlags().StringVar(&dbConnection, "dsn", dsn, "database connection string")
}

func openDB() (*sqlx.DB, error) {
	return db.Init(dbDriver, dbConnection)
}
