package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Print the effective manual alias table",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadAliases(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "version: %s\n", t.Version())
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RAW\tREPLACEMENT")
		for _, e := range t.Entries() {
			fmt.Fprintf(tw, "%s\t%s\n", e.Raw, e.Replacement)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
}
