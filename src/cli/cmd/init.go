package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amaranthinecodices/rodep/src/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultFile
		}
		c, err := config.Init(path, initForce)
		if err != nil {
			return fatal(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (lib_dir %q, rojo_path %q, lib_target %q)\n", path, c.LibDir, c.RojoPath, c.LibTarget)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}
