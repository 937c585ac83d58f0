package process

import "fmt"

type messageKind int

const (
	messageExited messageKind = iota
	messageExitedInvalid
)

// messageFormats holds the templates without and with an argument string.
// Log parsers downstream match on these; keep them stable.
var messageFormats = map[messageKind][2]string{
	messageExited: {
		`Process "%s" exited with code %d`,
		`Process "%s %s" exited with code %d`,
	},
	messageExitedInvalid: {
		`Process "%s" exited with invalid code %d.`,
		`Process "%s %s" exited with invalid code %d.`,
	},
}

func formatExitMessage(kind messageKind, path, arguments string, code int) string {
	formats := messageFormats[kind]
	if arguments == "" {
		return fmt.Sprintf(formats[0], path, code)
	}
	return fmt.Sprintf(formats[1], path, arguments, code)
}
