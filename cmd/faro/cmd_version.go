package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("faro %s (%s)\n", version.Version, version.GitCommit)
	},
}
