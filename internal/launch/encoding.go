package launch

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// lookupEncoding resolves a WHATWG/IANA encoding label. Empty and UTF-8
// labels resolve to nil: output is passed through unchanged.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrInvalidArgument, name)
	}
	return enc, nil
}

// DecodeReader wraps r so it yields UTF-8 text decoded from the named
// encoding.
func DecodeReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil || enc == nil {
		return r, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// DecodeString converts text captured in the named encoding to UTF-8.
func DecodeString(raw []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
