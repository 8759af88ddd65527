package main

import (
	"github.com/spf13/cobra"

	"github.com/jwalitptl/notifier/internal/repository/postgres"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg.Log)

		db, err := postgres.NewDB(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if rollbackSteps > 0 {
			if err := postgres.Rollback(db, rollbackSteps); err != nil {
				return err
			}
			log.Info("migrations rolled back", "steps", rollbackSteps)
			return nil
		}

		if err := postgres.Migrate(db); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "rollback", 0, "revert this many migrations instead of applying")
}
