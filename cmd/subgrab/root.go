package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for subgrab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subgrab",
		Short: "Fetch daily proxy subscription files from an encrypted article",
		Long: `subgrab fetches the newest article of a subscription site, brute-forces the
numeric passphrase of the encrypted payload embedded in the article, and
downloads the .txt and .yaml subscription links it contains to
v2ray.txt and clash.yaml.

Exit codes:
  0    success
  1    generic or configuration error
  2    fetch error
  3    article link not found
  4    encrypted payload not found
  5    no passphrase in range decrypted the payload
  6    no subscription URLs in the decrypted text
  7    one or more downloads failed
  130  interrupted`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewScheduleCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
