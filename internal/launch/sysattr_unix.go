//go:build unix

package launch

import (
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"runtime"
	"strconv"
	"syscall"
)

func shellCommand(path, arguments string) (string, []string) {
	line := quoteArgument(path)
	if arguments != "" {
		line += " " + arguments
	}
	return "/bin/sh", []string{"-c", line}
}

// applyPlatformAttributes maps UserName onto a uid/gid credential.
// CreateNoWindow, WindowStyle, ErrorDialog and LoadUserProfile have no
// meaning here.
func applyPlatformAttributes(cmd *exec.Cmd, c Config) error {
	if c.Domain != "" || c.Password != "" {
		return fmt.Errorf("domain and password credentials on %s: %w", runtime.GOOS, errors.ErrUnsupported)
	}
	if c.UserName == "" {
		return nil
	}

	u, err := user.Lookup(c.UserName)
	if err != nil {
		return err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return fmt.Errorf("parse uid for %s: %w", c.UserName, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return fmt.Errorf("parse gid for %s: %w", c.UserName, err)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
	}
	return nil
}
