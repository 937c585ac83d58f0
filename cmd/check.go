package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/proclaunch/internal/logging"
	"github.com/smazurov/proclaunch/internal/process"
)

// CreateCheckCmd returns the check command: resolve a profile and print
// what run would do, without spawning anything.
func CreateCheckCmd() *cobra.Command {
	var (
		profilePath string
		overrides   process.Overrides
	)

	cmd := &cobra.Command{
		Use:   "check [--profile FILE | -- PATH [ARGS...]]",
		Short: "Validate a launch profile and show its routing",
		Long: `Resolves a profile the same way run does and prints the command line,
exit policy and output routing. Nothing is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := resolveProfile(profilePath, args)
			if err != nil {
				return err
			}
			// Routing depends on whether a sink exists, not on where it writes.
			builder, err := profile.Builder(logging.SinkFunc(func(logging.Level, string) {}))
			if err != nil {
				return err
			}
			c, err := builder.Options(process.Options{}).Controller()
			if err != nil {
				return err
			}
			defer c.Close()

			cfg := overrides.Apply(c.Config())
			describe(cmd.OutOrStdout(), cfg.Path, cfg.CommandLine(), cfg.WorkingDirectory, c.Policy(), c.Routes())
			return nil
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Launch profile (TOML)")
	cmd.Flags().StringVar(&overrides.Path, "path", "", "Override the executable path")
	cmd.Flags().StringVar(&overrides.Arguments, "args", "", "Override the argument string")
	return cmd
}

func describe(w io.Writer, path, arguments, dir string, policy *process.ExitPolicy, routes [2]process.Route) {
	fmt.Fprintf(w, "path:       %s\n", path)
	if arguments != "" {
		fmt.Fprintf(w, "arguments:  %s\n", arguments)
	}
	if dir != "" {
		fmt.Fprintf(w, "directory:  %s\n", dir)
	}
	fmt.Fprintf(w, "exit codes: %s\n", policy)
	lines := make([]string, 0, len(routes))
	for _, r := range routes {
		lines = append(lines, "  "+r.String())
	}
	fmt.Fprintf(w, "output:\n%s\n", strings.Join(lines, "\n"))
}
