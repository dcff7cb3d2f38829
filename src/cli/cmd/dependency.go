package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/amaranthinecodices/rodep/src/output"
	"github.com/amaranthinecodices/rodep/src/project"
	"github.com/amaranthinecodices/rodep/src/resolve"
	"github.com/amaranthinecodices/rodep/src/submodule"
	"github.com/amaranthinecodices/rodep/src/workflow"
)

var (
	addDir     string
	addTarget  string
	addBranch  string
	addTimeout time.Duration
)

var addCmd = &cobra.Command{
	Use:   "add NAME...",
	Short: "Add dependencies as submodules and register their partitions",
	Long: `Add each NAME as a git submodule under lib_dir and register it as a
partition in the Rojo project file.

A NAME is resolved against the hosting origin (https://github.com/ unless
RODEP_BASE_URL is set), so "foo/bar" becomes https://github.com/foo/bar and is
cloned to lib_dir/bar. Append @CONSTRAINT to pin the highest matching semver
tag instead of the default branch: "foo/bar@^1.2".

Names are added one at a time in the order given. A failing name is reported
and the rest still run; the exit status is 1 if any name failed. Progress
lines go to stderr. Lock files guarding the project file and rodep.lock are
kept in the repository's .git directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addDir, "dir", "d", "", "source directory to use when neither src nor lib exists")
	addCmd.Flags().StringVarP(&addTarget, "target", "t", "", "sync name under lib_target (default: the cloned name)")
	addCmd.Flags().StringVarP(&addBranch, "branch", "b", "", "remote branch to track (default: the remote HEAD)")
	addCmd.Flags().DurationVar(&addTimeout, "timeout", 0, "limit on fetching each dependency (0 = none)")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	orch, err := newOrchestrator(cmd, len(args))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	color := output.UseColor(w)
	printContext(w, orch)

	start := time.Now()
	report := orch.Add(cmd.Context(), args, workflow.AddOptions{
		SourceDir: addDir,
		Target:    addTarget,
		Branch:    addBranch,
		Timeout:   addTimeout,
	})
	return renderReport(w, "Add", report, time.Since(start), color)
}

// newOrchestrator wires the collaborators of a batch of total names from the
// loaded settings. Progress lines go to stderr as each name finishes.
func newOrchestrator(cmd *cobra.Command, total int) (*workflow.Orchestrator, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fatal(fmt.Errorf("getting working directory: %w", err))
	}
	mgr, err := submodule.Discover(wd)
	if err != nil {
		return nil, fatal(err)
	}
	log.Debug().Str("root", mgr.Root()).Msg("repository found")

	res, err := resolve.New(os.Getenv(baseURLEnv), cfg.LibDir)
	if err != nil {
		return nil, fatal(fmt.Errorf("%s: %w", baseURLEnv, err))
	}

	// Advisory locks live in the git directory so they never show up as
	// untracked files.
	lockDir := mgr.GitDir()

	errw := cmd.ErrOrStderr()
	color := output.UseColor(errw)
	done := 0

	return &workflow.Orchestrator{
		BaseDir:     cfg.Dir(),
		ProjectFile: cfg.RojoPathAbs(),
		LockFile:    cfg.LockPath(),
		LockDir:     lockDir,
		Resolver:    res,
		Submodules:  mgr,
		Partitions:  &project.Patcher{LibDir: cfg.LibDir, LibTarget: cfg.LibTarget, LockDir: lockDir},
		Notify: func(r workflow.Result) {
			done++
			output.Progress(errw, done, total, resultRow(r), color)
		},
	}, nil
}

func printContext(w io.Writer, orch *workflow.Orchestrator) {
	output.ContextBlock(w, []output.KV{
		{Key: "origin", Value: orch.Resolver.Base()},
		{Key: "lib_dir", Value: cfg.LibDir},
		{Key: "project", Value: cfg.RojoPath},
		{Key: "target", Value: cfg.LibTarget},
	})
}

// renderReport prints one row per name and turns failures into exit code 1.
func renderReport(w io.Writer, title string, report *workflow.Report, elapsed time.Duration, color bool) error {
	sec := output.NewSection(w, title, elapsed, color)
	output.SectionResults(sec, resultRows(report), color)

	failed := report.Failed()
	output.SectionSummary(sec, len(report.Succeeded()), len(failed), elapsed, color)
	sec.Close()

	if len(failed) > 0 {
		return &ExitError{
			Code: ExitFailed,
			Err:  fmt.Errorf("%d of %d dependencies failed", len(failed), len(report.Results)),
		}
	}
	return nil
}

// resultRows converts workflow results to output view models.
func resultRows(report *workflow.Report) []output.ResultRow {
	rows := make([]output.ResultRow, len(report.Results))
	for i, r := range report.Results {
		rows[i] = resultRow(r)
	}
	return rows
}

func resultRow(r workflow.Result) output.ResultRow {
	row := output.ResultRow{Name: r.Name(), Elapsed: r.Elapsed}
	if r.Token == "" {
		row.Name = `""`
	}
	switch {
	case !r.OK():
		row.Status = output.StatusFailed
		row.Kind = r.Kind()
		row.Detail = r.Err.Error()
	case r.Partition.Path != "":
		row.Status = output.StatusOK
		row.Detail = fmt.Sprintf("%s → %s  %s", r.Partition.Key, r.Partition.Target, r.Partition.Path)
	default:
		row.Status = output.StatusOK
		row.Detail = "removed " + r.Partition.Key
	}
	return row
}
