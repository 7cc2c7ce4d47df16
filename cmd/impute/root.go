package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:   "impute",
	Short: "Low-rank matrix completion by singular value thresholding",
	Long: `impute generates a synthetic completion problem, recovers the matrix
along a decreasing penalty schedule and reports the recovery error
for every penalty.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "impute", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}
