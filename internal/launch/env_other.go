//go:build !windows

package launch

func envKey(name string) string {
	return name
}
