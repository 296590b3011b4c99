package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	cmdCtx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "descant",
		Short:         "Vocal-removal pipeline engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd, cmdCtx, true)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(cmdCtx))
	rootCmd.AddCommand(newRunOnceCommand(cmdCtx))
	rootCmd.AddCommand(newSyncDaemonCommand(cmdCtx))
	rootCmd.AddCommand(newSyncOnceCommand(cmdCtx))
	rootCmd.AddCommand(newQueueCommand(cmdCtx))
	rootCmd.AddCommand(newConfigCommand(cmdCtx))

	return rootCmd
}
