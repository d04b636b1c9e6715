package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/danmuck/entropyctl/internal/observability"
	"github.com/danmuck/entropyctl/internal/seed"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether each configured source is worth trying",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, built, err := loadSources()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tWORTH TRYING\tSOURCE")
	for _, name := range built.Registry.Names() {
		src, _ := built.Registry.Resolve(name)
		marker := ""
		if name == built.DefaultName {
			marker = " (default)"
		}
		fmt.Fprintf(tw, "%s%s\t%t\t%s\n", name, marker, src.IsWorthTrying(), seed.Name(observability.Unwrap(src)))
	}
	return tw.Flush()
}
