//go:build windows

package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

func shellCommand(path, arguments string) (string, []string) {
	shell := os.Getenv("ComSpec")
	if shell == "" {
		shell = "cmd.exe"
	}
	line := quoteArgument(path)
	if arguments != "" {
		line += " " + arguments
	}
	return shell, []string{"/C", line}
}

// applyPlatformAttributes honors CreateNoWindow and WindowStyle=Hidden.
// Running under another account needs a logon token, which is not
// supported.
func applyPlatformAttributes(cmd *exec.Cmd, c Config) error {
	if c.UserName != "" || c.Domain != "" || c.Password != "" {
		return fmt.Errorf("alternate credentials: %w", errors.ErrUnsupported)
	}

	attr := &syscall.SysProcAttr{}
	if c.CreateNoWindow {
		attr.CreationFlags |= windows.CREATE_NO_WINDOW
	}
	if c.WindowStyle == WindowHidden {
		attr.HideWindow = true
	}
	cmd.SysProcAttr = attr
	return nil
}
