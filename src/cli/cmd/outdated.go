package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/amaranthinecodices/rodep/src/lockfile"
	"github.com/amaranthinecodices/rodep/src/output"
	"github.com/amaranthinecodices/rodep/src/workflow"
)

var outdatedJobs int

var outdatedCmd = &cobra.Command{
	Use:   "outdated",
	Short: "Check locked dependencies for newer commits or tags",
	Long: `Ask each dependency's remote what "rodep add" would pin today and compare
it with rodep.lock. Nothing is fetched into the repository or written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := lockfile.Load(cfg.LockPath())
		if err != nil {
			return fatal(fmt.Errorf("reading lockfile: %w", err))
		}

		w := cmd.OutOrStdout()
		color := output.UseColor(w)

		start := time.Now()
		results := workflow.Outdated(cmd.Context(), lock.Dependencies, outdatedJobs, nil)
		elapsed := time.Since(start)

		sec := output.NewSection(w, "Outdated", elapsed, color)
		rows := make([]output.ResultRow, len(results))
		stale, failed := 0, 0
		for i, r := range results {
			row := output.ResultRow{Name: r.Entry.Name}
			switch {
			case r.Err != nil:
				failed++
				row.Status = output.StatusFailed
				row.Kind = workflow.KindOf(r.Err)
				row.Detail = r.Err.Error()
			case r.Status.Outdated():
				stale++
				row.Status = output.StatusSkipped
				row.Detail = fmt.Sprintf("%s %s → %s %s",
					r.Status.Ref.Short(), shortHash(r.Status.Pinned.String()),
					r.Status.LatestRef.Short(), shortHash(r.Status.Latest.String()))
			default:
				row.Status = output.StatusOK
				row.Detail = fmt.Sprintf("%s %s", r.Status.Ref.Short(), shortHash(r.Status.Pinned.String()))
			}
			rows[i] = row
		}
		output.SectionResults(sec, rows, color)
		sec.Separator()
		sec.Row("%-12s%d current, %d outdated, %d failed", "total", len(results)-stale-failed, stale, failed)
		sec.Close()

		if failed > 0 {
			return &ExitError{Code: ExitFailed, Err: fmt.Errorf("%d of %d checks failed", failed, len(results))}
		}
		return nil
	},
}

func init() {
	outdatedCmd.Flags().IntVarP(&outdatedJobs, "jobs", "j", runtime.NumCPU(), "remotes to query in parallel")
	rootCmd.AddCommand(outdatedCmd)
}
