package dispatch

import (
	"github.com/dlclark/regexp2"
	"time"
)

// matchTimeout bounds a single regular expression evaluation.
const matchTimeout = 250 * time.Millisecond

// Pattern decides whether a message parser applies to a text.
type Pattern interface {
	Match(text string) bool
}

// PatternFunc adapts a predicate to a Pattern.
type PatternFunc func(text string) bool

func (f PatternFunc) Match(text string) bool {
	return f(text)
}

type regexpPattern struct {
	re *regexp2.Regexp
}

// Regexp wraps a compiled expression. regexp2 keeps no match cursor between
// calls, so every Match starts from the beginning of the text.
func Regexp(re *regexp2.Regexp) Pattern {
	if re.MatchTimeout <= 0 {
		re.MatchTimeout = matchTimeout
	}
	return regexpPattern{re: re}
}

// Compile parses an ECMAScript-flavoured expression.
func Compile(expr string) (Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	return Regexp(re), nil
}

func MustCompile(expr string) Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(`dispatch: Compile(` + expr + `): ` + err.Error())
	}
	return p
}

func (p regexpPattern) Match(text string) bool {
	ok, err := p.re.MatchString(text)
	return err == nil && ok
}

func (p regexpPattern) String() string {
	return p.re.String()
}
