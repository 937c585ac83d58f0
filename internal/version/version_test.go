package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetUsesLdflagValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldVersion, oldCommit, oldDate })

	Version, GitCommit, BuildDate = "v1.2.3", "0123456789abcdef", "2025-01-27"
	info := Get()
	if info.Version != "v1.2.3" || info.GitCommit != "0123456789abcdef" || info.BuildDate != "2025-01-27" {
		t.Errorf("Get() = %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
}

func TestInfoStringShortensCommit(t *testing.T) {
	s := Info{Version: "v1", GitCommit: "0123456789abcdef", BuildDate: "today", Modified: true, GoVersion: "go1.24", Platform: "linux/amd64"}.String()
	if !strings.Contains(s, "0123456789ab-dirty") || strings.Contains(s, "cdef") {
		t.Errorf("String() = %q", s)
	}
}
