package launch

import (
	"fmt"
	"os/exec"
	"strings"
)

// Command builds an unstarted exec.Cmd for c. Stream wiring is left to the
// caller. The command is not bound to a context: cancelling a wait must
// never kill the child.
func (c Config) Command() (*exec.Cmd, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	name := c.Path
	var args []string
	if c.UseShellExecute {
		// The shell sees the argument string verbatim, pipes and all.
		name, args = shellCommand(c.Path, c.CommandLine())
	} else {
		var err error
		if args, err = c.argv(); err != nil {
			return nil, err
		}
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = c.WorkingDirectory
	cmd.Env = c.envList()

	if err := applyPlatformAttributes(cmd, c); err != nil {
		return nil, err
	}
	return cmd, nil
}

// argv returns the argument vector without the program name.
func (c Config) argv() ([]string, error) {
	if len(c.ArgumentList) > 0 {
		return append([]string(nil), c.ArgumentList...), nil
	}
	return splitArguments(c.Arguments)
}

// splitArguments splits an argument string into words.
// Handles single and double quotes and backslash escapes.
func splitArguments(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	inWord := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(line))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				inWord = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		case r == '\\' && i+1 < len(runes) && quoteChar != '\'':
			i++
			current.WriteRune(runes[i])
			inWord = true
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("%w: unclosed quote in arguments", ErrInvalidArgument)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// joinArguments renders an argument vector so splitArguments returns it
// unchanged.
func joinArguments(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = quoteArgument(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArgument(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range arg {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}
