package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/amaranthinecodices/rodep/src/config"
	"github.com/amaranthinecodices/rodep/src/logging"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1 // one or more dependencies failed
	ExitFatal  = 2 // nothing was attempted
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func fatal(err error) error {
	return &ExitError{Code: ExitFatal, Err: err}
}

// baseURLEnv overrides the hosting origin names are resolved against.
const baseURLEnv = "RODEP_BASE_URL"

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rodep",
	Short: "Manage Rojo dependencies as git submodules",
	Long: `rodep adds dependencies to a Rojo project as git submodules and registers
each one as a partition in the project file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(cmd.ErrOrStderr(), verbose)

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("ignoring unreadable .env")
		}

		// init writes the settings file; version needs nothing.
		switch cmd.Name() {
		case "init", "version", "help":
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fatal(fmt.Errorf("loading settings: %w", err))
		}
		log.Debug().Str("dir", cfg.Dir()).Str("lib_dir", cfg.LibDir).Str("rojo_path", cfg.RojoPath).Msg("settings loaded")
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "settings file (default: "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code == ExitFatal {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return err
	}
	return nil
}
