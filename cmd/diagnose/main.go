// Command diagnose runs the diagnostic engine offline against the built-in
// or a custom catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose a vehicle problem from its symptoms",
		Long: "diagnose matches symptom text and trouble codes against the component\n" +
			"catalog and prints likely components, costs and next steps.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	run := newRunCmd()
	root.AddCommand(run, newComponentsCmd())
	// Bare invocation with flags behaves like "run".
	root.Flags().AddFlagSet(run.Flags())
	root.RunE = run.RunE
	return root
}
