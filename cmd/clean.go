package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [target]",
	Short: "Remove built artifacts",
	Long: `Remove a target's artifact and declared outputs along with those of
every target depending on it. Without an argument, every target is
cleaned. Downloaded archives are only removed when named explicitly or
when cleaning everything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		tr, _, err := buildRunner()
		if err != nil {
			return err
		}

		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		return tr.Clean(name)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
