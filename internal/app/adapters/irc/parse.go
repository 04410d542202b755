package irc

import "strings"

// Line is one parsed protocol line.
type Line struct {
	Tags    map[string]string
	Nick    string
	Ident   string
	Host    string
	Command string
	Params  []string
}

var tagUnescaper = strings.NewReplacer(
	"\\:", ";",
	"\\r", "\r",
	"\\n", "\n",
	"\\s", " ",
	"\\\\", "\\",
	"\\", "",
)

// Parse splits a raw line into tags, source, command and params. The
// trailing parameter, if any, is the last element of Params.
func Parse(raw string) (*Line, bool) {
	line := strings.TrimRight(raw, "\r\n")
	msg := &Line{Tags: make(map[string]string)}

	if len(line) > 0 && line[0] == '@' {
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx == -1 {
			return nil, false
		}
		rawTags := line[1:spaceIdx]
		line = strings.TrimLeft(line[spaceIdx+1:], " ")

		start := 0
		for i := 0; i <= len(rawTags); i++ {
			if i == len(rawTags) || rawTags[i] == ';' {
				tag := rawTags[start:i]
				if tag != "" {
					if eq := strings.IndexByte(tag, '='); eq != -1 {
						msg.Tags[tag[:eq]] = tagUnescaper.Replace(tag[eq+1:])
					} else {
						msg.Tags[tag] = ""
					}
				}
				start = i + 1
			}
		}
	}

	if len(line) > 0 && line[0] == ':' {
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx == -1 {
			return nil, false
		}
		prefix := line[1:spaceIdx]
		line = strings.TrimLeft(line[spaceIdx+1:], " ")

		if at := strings.IndexByte(prefix, '@'); at != -1 {
			msg.Host = prefix[at+1:]
			prefix = prefix[:at]
		}
		if excl := strings.IndexByte(prefix, '!'); excl != -1 {
			msg.Ident = prefix[excl+1:]
			prefix = prefix[:excl]
		}
		msg.Nick = prefix
	}

	for line != "" {
		if line[0] == ':' {
			msg.Params = append(msg.Params, line[1:])
			break
		}

		param, rest, _ := strings.Cut(line, " ")
		if msg.Command == "" {
			msg.Command = strings.ToUpper(param)
		} else {
			msg.Params = append(msg.Params, param)
		}
		line = strings.TrimLeft(rest, " ")
	}

	if msg.Command == "" {
		return nil, false
	}
	return msg, true
}

// Param returns the i-th parameter or "" when there are fewer.
func (l *Line) Param(i int) string {
	if i < 0 || i >= len(l.Params) {
		return ""
	}
	return l.Params[i]
}

// Trailing is the last parameter.
func (l *Line) Trailing() string {
	return l.Param(len(l.Params) - 1)
}

// splitCTCP unwraps a \x01-delimited CTCP payload.
func splitCTCP(text string) (kind, params string, ok bool) {
	if len(text) < 2 || text[0] != '\x01' {
		return "", "", false
	}

	body := strings.TrimSuffix(text[1:], "\x01")
	kind, params, _ = strings.Cut(body, " ")
	if kind == "" {
		return "", "", false
	}
	return strings.ToUpper(kind), params, true
}
