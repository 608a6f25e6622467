package main

import (
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/database"
)

var sendScheduledCmd = &cobra.Command{
	Use:   "send-scheduled",
	Short: "Send due scheduled messages once (run from cron)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.messages.ProcessScheduled(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("processed %d scheduled message(s)\n", n)
		return nil
	},
}

var initTemplatesCmd = &cobra.Command{
	Use:   "init-templates",
	Short: "Insert the default message templates that do not exist yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.messages.InitDefaultTemplates(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("added %d template(s)\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		return database.Migrate(cfg, log)
	},
}
