package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of kwpolicy",
	Run: func(cmd *cobra.Command, _ []string) {
		version := "devel"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			version = info.Main.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kwpolicy version %s (policy protocol %s)\n", version, entities.CurrentProtocolVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
