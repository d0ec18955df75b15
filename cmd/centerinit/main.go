// centerinit computes the initial center of rotation and translation of a
// centered transform for a fixed and a moving image, as the first step of an
// image registration.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

// newRootCmd creates the root command. Tests build fresh instances through it.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "centerinit",
		Short: "Initialize the center and translation of a registration transform.",
		Long: `centerinit reads a fixed and a moving image and derives a starting
center of rotation and translation for a centered transform using one of four
modes: geometry, moments, origins or geometrytop.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd(), newInitConfigCmd())
	return cmd
}
