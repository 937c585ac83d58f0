//go:build !unix && !windows

package launch

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

func shellCommand(path, arguments string) (string, []string) {
	args, _ := splitArguments(arguments)
	return path, args
}

func applyPlatformAttributes(_ *exec.Cmd, c Config) error {
	if c.UserName != "" || c.Domain != "" || c.Password != "" {
		return fmt.Errorf("credentials on %s: %w", runtime.GOOS, errors.ErrUnsupported)
	}
	return nil
}
