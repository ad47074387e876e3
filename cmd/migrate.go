package cmd

import (
	"fmt"
	"log"
	"text/tabwriter"

	"firmware-risk-scanner/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration management",
	Long:  `Manage database migrations - apply pending migrations or check their status.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Long:  `Apply all pending database migrations to bring the schema up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, err := openDatabase()
		if err != nil {
			return err
		}
		defer cleanup()

		log.Println("Running database migrations...")
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		log.Println("All migrations completed successfully!")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  `Display the current status of all migrations - which are applied and which are pending.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, cleanup, err := openDatabase()
		if err != nil {
			return err
		}
		defer cleanup()

		migrations, err := database.GetMigrationStatus()
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

		// Print status table
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Version\tDescription\tStatus")
		fmt.Fprintln(w, "-------\t-----------\t------")

		for _, migration := range migrations {
			status := "Pending"
			if migration.Applied {
				status = "Applied"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", migration.Version, migration.Description, status)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// openDatabase loads the configuration and opens the configured database.
// Opening applies pending migrations.
func openDatabase() (*db.Database, func(), error) {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.NewDatabase(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		logCloser.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return database, func() {
		database.Close()
		logCloser.Close()
	}, nil
}

