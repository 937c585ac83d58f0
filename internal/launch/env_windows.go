//go:build windows

package launch

import "strings"

// Windows environment variable names are case-insensitive.
func envKey(name string) string {
	return strings.ToUpper(name)
}
