// Package cli defines the cobra command tree for crunch.
package cli

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	format string
}

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "crunch",
		Short:         "Evaluate listings as rental investments",
		Long:          "Search a listing provider by location and filters, then rank each result by cash flow, cash-on-cash return and a composite score.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rf.format, "format", "text", "output format (text|json)")

	root.AddCommand(newSearchCmd(rf))
	return root
}

func (rf *rootFlags) isJSON() bool { return rf.format == "json" }
