package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var graphFormat string

type planEntry struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Path     string   `yaml:"path"`
	Deps     []string `yaml:"deps,omitempty"`
	Produced string   `yaml:"produced_at,omitempty"`
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resolved target graph in dependency order",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		tr, _, err := buildRunner()
		if err != nil {
			return err
		}

		order, err := tr.TopologicalOrder()
		if err != nil {
			return err
		}

		entries := make([]planEntry, 0, len(order))
		for _, name := range order {
			t := tr.Targets[name]
			entry := planEntry{
				Name: name,
				Kind: t.Kind().String(),
				Path: t.Path,
				Deps: t.TargetDeps,
			}
			if recorded, ok := tr.Manifest().Entry(name); ok {
				entry.Produced = recorded.ProducedAt.Format(time.RFC3339)
			}
			entries = append(entries, entry)
		}

		switch graphFormat {
		case "yaml":
			data, err := yaml.Marshal(entries)
			if err != nil {
				return errors.WithStack(err)
			}
			fmt.Print(string(data))
		case "text":
			for _, entry := range entries {
				line := fmt.Sprintf("%s (%s) -> %s", entry.Name, entry.Kind, entry.Path)
				if len(entry.Deps) > 0 {
					line += " [" + strings.Join(entry.Deps, ", ") + "]"
				}
				fmt.Println(line)
			}
		default:
			return errors.Errorf("unknown format %q (want text or yaml)", graphFormat)
		}

		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphFormat, "format", "text", "output format (text, yaml)")
	rootCmd.AddCommand(graphCmd)
}
