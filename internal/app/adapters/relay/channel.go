package relay

import "strings"

const maxChannelNameLength = 50

// IsChannelName reports whether name is a joinable channel: a known prefix,
// no separators and at most 50 bytes.
func IsChannelName(name string) bool {
	if len(name) < 2 || len(name) > maxChannelNameLength {
		return false
	}

	switch name[0] {
	case '#', '&', '+', '!':
	default:
		return false
	}

	return !strings.ContainsAny(name, " ,\a\r\n")
}
