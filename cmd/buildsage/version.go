package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridden via ldflags in release builds.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(version)
			return
		}
		fmt.Printf("buildsage %s (commit %s, built %s, %s %s/%s)\n",
			version, commit, buildDate,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the bare version string")
}
