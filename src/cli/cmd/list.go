package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/amaranthinecodices/rodep/src/lockfile"
	"github.com/amaranthinecodices/rodep/src/output"
	"github.com/amaranthinecodices/rodep/src/project"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List dependencies recorded in rodep.lock",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := lockfile.Load(cfg.LockPath())
		if err != nil {
			return fatal(fmt.Errorf("reading lockfile: %w", err))
		}
		targets := map[string]string{}
		parts, err := project.Partitions(cfg.RojoPathAbs())
		if err != nil {
			log.Warn().Err(err).Msg("partition targets unavailable")
		}
		for _, p := range parts {
			targets[p.Key] = p.Target
		}
		return printLock(cmd.OutOrStdout(), lock.Dependencies, targets, listOutput)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(listCmd)
}

// lockView is the serialized form of a lock entry for json and yaml output.
type lockView struct {
	Name       string `json:"name" yaml:"name"`
	Source     string `json:"source" yaml:"source"`
	URL        string `json:"url" yaml:"url"`
	Path       string `json:"path" yaml:"path"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Ref        string `json:"ref" yaml:"ref"`
	Commit     string `json:"commit" yaml:"commit"`
	Partition  string `json:"partition" yaml:"partition"`
	Target     string `json:"target,omitempty" yaml:"target,omitempty"`
	AddedAt    string `json:"added_at" yaml:"added_at"`
}

func printLock(w io.Writer, entries []lockfile.Entry, targets map[string]string, format string) error {
	views := make([]lockView, len(entries))
	for i, e := range entries {
		views[i] = lockView{
			Name:       e.Name,
			Source:     e.Source,
			URL:        e.URL,
			Path:       e.Path,
			Constraint: e.Constraint,
			Ref:        e.Ref,
			Commit:     e.Commit,
			Partition:  e.Partition,
			Target:     targets[e.Partition],
			AddedAt:    e.AddedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	switch format {
	case "table", "":
		rows := make([][]string, len(views))
		for i, v := range views {
			pin := plumbing.ReferenceName(v.Ref).Short()
			if v.Constraint != "" {
				pin += " (" + v.Constraint + ")"
			}
			target := v.Target
			if target == "" {
				target = "-"
			}
			rows[i] = []string{v.Name, v.Path, pin, shortHash(v.Commit), target, v.URL}
		}
		return output.Table(w, []string{"name", "path", "pin", "commit", "target", "url"}, rows)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fatal(fmt.Errorf("unknown output format %q: valid values are \"table\", \"json\", \"yaml\"", format))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
