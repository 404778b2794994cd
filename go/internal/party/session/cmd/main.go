package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "partyspin",
	Short: "partyspin - shared meal spins for a room of peers",
	Long: `partyspin runs a headless party peer. Peers in the same room elect a host,
share the host's spin and vote to keep or reroll individual slots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
