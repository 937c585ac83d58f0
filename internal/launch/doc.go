// Package launch describes how a child process is spawned: executable,
// arguments, working directory, environment overlay, window and shell
// behavior, credentials and stream encodings.
//
// Settings are accumulated with a chained Builder and frozen into a Config:
//
//	cfg, err := launch.New().
//		Path("make").
//		Arguments("build -j4").
//		WorkingDirectory("/src").
//		SetEnvironmentVariable("GOFLAGS", "-mod=mod").
//		Build()
//
// The parent environment is only copied when a variable is set or removed;
// until then the child inherits it unchanged and neither Build nor Clone
// enumerates it.
//
// Some fields only mean something on one platform. They can always be set;
// see the Config field docs for where each one is honored.
package launch
