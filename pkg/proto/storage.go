package proto

import "strings"

// ReplyText is an ASCII firmware reply without its zero padding.
func ReplyText(reply []byte) string {
	return strings.TrimRight(string(reply), "\x00")
}

// HasStatus matches an ASCII status reply such as create_success or
// media_stop by prefix.
func HasStatus(reply []byte, status string) bool {
	return strings.HasPrefix(ReplyText(reply), status)
}

// ParseFileList decodes a storage listing of the form
// "result:dir:<a/b/>file:<x/y/>".
func ParseFileList(reply []byte) ([]string, []string, error) {
	s := ReplyText(reply)
	if !strings.HasPrefix(s, "result:") {
		return nil, nil, &ProtocolError{Op: "list", Got: reply, Want: "result:dir:...file:..."}
	}
	s = strings.TrimPrefix(s, "result:")

	di := strings.Index(s, "dir:")
	fi := strings.Index(s, "file:")
	if di < 0 || fi < di {
		return nil, nil, &ProtocolError{Op: "list", Got: reply, Want: "result:dir:...file:..."}
	}
	return splitNames(s[di+len("dir:") : fi]), splitNames(s[fi+len("file:"):]), nil
}

// splitNames splits on "/" and drops the empty element after the trailing
// slash.
func splitNames(s string) []string {
	parts := strings.Split(s, "/")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
