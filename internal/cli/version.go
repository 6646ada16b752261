package cli

import (
	"github.com/spf13/cobra"
)

// cliVersion is the version reported by the version command.
const cliVersion = "v0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pingmark",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{"version": cliVersion})
			} else {
				cmd.Printf("pingmark %s\n", cliVersion)
			}
		},
	}
}
