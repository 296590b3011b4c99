package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"descant/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
			} else {
				target, err = config.ExpandPath(target)
			}
			if err != nil {
				return &exitError{code: exitConfigInvalid, err: err}
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &exitError{code: exitFatalFS, err: err}
			}

			if !overwrite {
				if _, statErr := os.Stat(target); statErr == nil {
					return &exitError{code: exitConfigInvalid, err: fmt.Errorf("config file already exists at %s (use --overwrite)", target)}
				}
			}

			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return &exitError{code: exitFatalFS, err: err}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration path and validate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := ctx.ensureSnapshot()
			if err != nil {
				return &exitError{code: exitConfigInvalid, err: err}
			}
			cfg := snapshot.Current()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "incoming queues:    %d\n", len(cfg.Queues))
			fmt.Fprintf(out, "working:            %s\n", cfg.Paths.Working)
			fmt.Fprintf(out, "outputs_dir:        %s\n", cfg.Paths.OutputsDir)
			fmt.Fprintf(out, "archive_dir:        %s\n", cfg.Paths.ArchiveDir)
			fmt.Fprintf(out, "model:              %s\n", cfg.Processing.Model)
			fmt.Fprintf(out, "variants:           %s\n", strings.Join(cfg.Variants.Enabled, ", "))
			fmt.Fprintf(out, "sync method:        %s\n", cfg.Sync.Method)
			fmt.Fprintln(out, "configuration valid")
			return nil
		},
	}
}
