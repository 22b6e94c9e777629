package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. Resources opened by subcommands
// are released by cc.close once Execute returns.
func newRootCommand(cc *commandContext) *cobra.Command {

	rootCmd := &cobra.Command{
		Use:           "taskforge",
		Short:         "Task lifecycle and time-tracking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			if cc.logCloser == nil {
				log, closer := cc.newLogger(cfg, cmd)
				slog.SetDefault(log)
				cc.logCloser = closer
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cc.configPath, "config", "c", "", "Configuration file path (default taskforge.yaml)")
	flags.StringVar(&cc.tenantID, "tenant", "", "Tenant the command operates on")
	flags.StringVar(&cc.actorID, "actor", "", "Actor recorded in history (default $USER)")
	flags.StringVarP(&cc.output, "output", "o", "auto", "Output format: auto, table or json")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newMigrateCommand(cc))
	rootCmd.AddCommand(newDirectoryCommand(cc))
	rootCmd.AddCommand(newTasksCommand(cc))

	return rootCmd
}
