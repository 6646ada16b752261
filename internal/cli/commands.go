// Package cli implements the pingmark command tree. The commands stay thin:
// they translate flags into benchmark configurations, delegate to the bench
// and suite packages, and render the outcome either for people or as JSON
// for scripts.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Global flags
var jsonOutput bool

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var warnLabel = color.New(color.FgYellow)

// ErrAlreadyHandled marks errors whose message has already been shown;
// Execute only sets the exit code for them.
var ErrAlreadyHandled = errors.New("already handled")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pingmark [command] [flags]",
	Short: "pingmark - session protocol benchmark client",
	Long: `pingmark benchmarks a session server over its datagram or stream listener.
It measures per-request round trips in two modes: reusing one session across
all requests, or re-establishing the session on every iteration.

Examples:
  # 100 requests against a local server, fresh session per request
  pingmark run --target 127.0.0.1:5000

  # reuse one session, echo every request, save the summary row
  pingmark run --session --print --save

  # drive a suite of runs from a file
  pingmark suite -f nightly.yaml

  # the full 8-combination sweep, 10 repeats each
  pingmark suite --full --repeat 10`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSuiteCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// printJSON prints the given value as indented JSON to stdout
func printJSON(data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}
