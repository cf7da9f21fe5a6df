package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vitacheck",
	Short: "Vitacheck - drug and supplement interaction analysis service",
	Long: `Vitacheck analyzes combinations of medications and supplements for
interactions. It queries public medical datasets in parallel, merges the
evidence per origin, and reports a consensus severity with a confidence
score for every pair and triple in the request.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
