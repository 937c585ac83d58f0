// Package cmd implements the proclaunch command line.
package cmd

import "github.com/spf13/cobra"

// NewRootCmd assembles the proclaunch command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proclaunch",
		Short: "Launch processes with routed output and verified exit codes",
		// Failures are the child's, not the user's invocation.
		SilenceUsage: true,
	}
	root.AddCommand(CreateRunCmd(), CreateCheckCmd(), CreateVersionCmd())
	return root
}
