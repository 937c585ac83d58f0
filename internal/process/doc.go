// Package process runs one child process at a time and turns its output and
// exit code into an audit trail.
//
// A Controller wraps os/exec for a single launch.Config:
//   - Router decides, per stream, whether output is inherited, delivered
//     line by line, or logged as one message after exit
//   - The logging consumer always runs before user OutputHandlers
//   - Start may be repeated after each exit; handlers are subscribed once
//   - WaitContext can be cancelled without killing the child
//   - Finalize logs the exit code and checks it against an ExitPolicy
//
// Run and RunContext perform Start, Wait and Finalize in order:
//
//	router := process.NewLoggingRouter(logging.NewSlogSink(logger))
//	code, err := process.Run(cfg, process.DefaultExitPolicy(), router, process.Overrides{})
//	var exitErr *process.ExitCodeError
//	if errors.As(err, &exitErr) {
//	    log.Printf("valid codes were %v", exitErr.ValidCodes)
//	}
//
// Exit code messages have a fixed format:
//
//	Process "{path}" exited with code {code}
//	Process "{path} {arguments}" exited with code {code}
package process
