package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/crateferry/internal/buildinfo"
)

// versionCmd exists because the install flow already claims the root
// command's --version flag for a version *requirement* (see registerFlags),
// so cobra's automatic --version handling never fires.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crateferry version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildinfo.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
