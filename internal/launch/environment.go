package launch

import (
	"os"
	"sort"
	"strings"
)

// environ is swapped in tests to count enumerations of the parent environment.
var environ = os.Environ

type envVar struct {
	name  string
	value string
}

// materializeEnv copies the inherited environment on first use.
func (c *Config) materializeEnv() {
	if c.env != nil {
		return
	}
	inherited := environ()
	c.env = make(map[string]envVar, len(inherited))
	for _, kv := range inherited {
		name, value, ok := splitEnvEntry(kv)
		if !ok {
			continue
		}
		c.env[envKey(name)] = envVar{name: name, value: value}
	}
}

// envList renders the materialized environment for exec.Cmd.Env.
func (c Config) envList() []string {
	if c.env == nil {
		return nil
	}
	out := make([]string, 0, len(c.env))
	for _, v := range c.env {
		out = append(out, v.name+"="+v.value)
	}
	sort.Strings(out)
	return out
}

// splitEnvEntry splits NAME=value. A leading '=' belongs to the name
// (Windows per-drive entries such as "=C:=C:\dir").
func splitEnvEntry(kv string) (string, string, bool) {
	if kv == "" {
		return "", "", false
	}
	idx := strings.Index(kv[1:], "=")
	if idx < 0 {
		return "", "", false
	}
	idx++
	return kv[:idx], kv[idx+1:], true
}
