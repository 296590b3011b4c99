package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"descant/internal/queueconsumer"
)

// newQueueCommand builds the `queue` command group. Unlike the teacher's
// `spindle queue` subcommands, which RPC into a running daemon over
// internal/ipc, these read the queue directories directly: this
// repository's queue is filesystem-native (internal/queueconsumer) and its
// health is fully observable without a live daemon process. See DESIGN.md
// for the rationale behind dropping the IPC layer entirely.
func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect queue roots and claimable jobs",
	}
	cmd.AddCommand(newQueueHealthCommand(ctx))
	cmd.AddCommand(newQueueListCommand(ctx))
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue root and database reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := ctx.ensureSnapshot()
			if err != nil {
				return &exitError{code: exitConfigInvalid, err: err}
			}
			cfg := snapshot.Current()

			headers := []string{"Queue", "Root", "Exists", "Claimable"}
			var rows [][]string
			for _, q := range cfg.Queues {
				exists := "no"
				claimable := "-"
				if info, statErr := os.Stat(q.Root); statErr == nil && info.IsDir() {
					exists = "yes"
					consumer := queueconsumer.New(map[string]string{q.Name: q.Root}, []string{q.Name}, cfg.Paths.Working, cfg.Paths.ArchiveDir)
					if candidates, discErr := consumer.Discover(); discErr == nil {
						claimable = strconv.Itoa(len(candidates))
					}
				}
				rows = append(rows, []string{q.Name, q.Root, exists, claimable})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "DB path: %s (%s)\n", cfg.Paths.DBPath, existsLabel(cfg.Paths.DBPath))
			return nil
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List claimable jobs across every configured queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := ctx.ensureSnapshot()
			if err != nil {
				return &exitError{code: exitConfigInvalid, err: err}
			}
			cfg := snapshot.Current()

			queues := make(map[string]string, len(cfg.Queues))
			order := make([]string, 0, len(cfg.Queues))
			for _, q := range cfg.Queues {
				queues[q.Name] = q.Root
				order = append(order, q.Name)
			}
			consumer := queueconsumer.New(queues, order, cfg.Paths.Working, cfg.Paths.ArchiveDir)

			candidates, err := consumer.Discover()
			if err != nil {
				return &exitError{code: exitFatalFS, err: err}
			}

			headers := []string{"Queue", "Job ID", "Modified"}
			rows := make([][]string, 0, len(candidates))
			for _, c := range candidates {
				modified := time.Unix(0, c.ModTime).UTC().Format(time.RFC3339)
				rows = append(rows, []string{c.QueueName, c.JobID, modified})
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "no claimable jobs")
				return nil
			}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func existsLabel(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "absent"
	}
	return "present"
}
