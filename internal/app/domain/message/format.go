package message

import "regexp"

// In-band IRC formatting control codes.
const (
	Bold          = "\x02"
	Color         = "\x03"
	HexColor      = "\x04"
	Monospace     = "\x11"
	Reverse       = "\x16"
	Italic        = "\x1D"
	Strikethrough = "\x1E"
	Underline     = "\x1F"
	Reset         = "\x0F"
)

// A color code is the introducer followed by an optional 1-2 digit foreground
// and an optional comma + 1-2 digit background. A hex color takes RRGGBB
// instead. A comma not followed by a color belongs to the text.
var formatting = regexp.MustCompile("\x03(?:[0-9]{1,2}(?:,[0-9]{1,2})?)?|\x04(?:[0-9A-Fa-f]{6}(?:,[0-9A-Fa-f]{6})?)?|[\x02\x0F\x11\x16\x1D\x1E\x1F]")

// Strip removes IRC formatting sequences from text in a single pass.
func Strip(text string) string {
	if text == "" {
		return text
	}
	return formatting.ReplaceAllLiteralString(text, "")
}
