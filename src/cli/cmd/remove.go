package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/amaranthinecodices/rodep/src/output"
)

var removeCmd = &cobra.Command{
	Use:     "remove NAME...",
	Aliases: []string{"rm"},
	Short:   "Remove dependencies and their partitions",
	Long: `Remove each NAME: deinitialize and delete its submodule, drop its
partition from the Rojo project file and its record from rodep.lock.

NAME is the cloned name shown by "rodep list", or anything "rodep add" accepts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := newOrchestrator(cmd, len(args))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		start := time.Now()
		report := orch.Remove(cmd.Context(), args)
		return renderReport(w, "Remove", report, time.Since(start), output.UseColor(w))
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
