package changelog

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// a backtick that ends a run, i.e. is followed by a non-backtick or the end
	tickRunEndRe = regexp.MustCompile("`(?:([^`])|$)")
	tripleTickRe = regexp.MustCompile("```")
	// a named hyperlink closer that is not already anonymous
	namedLinkRe = regexp.MustCompile("`_(?:([^_])|$)")
)

// Normalize rewrites the inline markup of a single entry so that it can be
// concatenated with entries from other packages:
//
//   - ``literal`` spans are left alone;
//   - `emphasis` spans, which are invalid in this dialect, become ``literal``;
//   - named hyperlinks `text <url>`_ become anonymous `text <url>`__ so that
//     link names from different packages cannot collide.
//
// Malformed markup never fails; it is emitted as a best-effort literal.
func Normalize(entry string) string {
	if !strings.Contains(entry, "`") {
		return entry
	}

	text := tickRunEndRe.ReplaceAllString(entry, "``${1}")
	text = tripleTickRe.ReplaceAllString(text, "``")
	text = namedLinkRe.ReplaceAllString(text, "`__${1}")

	return strings.TrimRightFunc(demoteLinks(text), unicode.IsSpace)
}

type spanState int

const (
	stateRegular spanState = iota
	stateOneLeading
	stateTwoLeading
	stateOneTrailing
	stateTwoTrailing
)

// spanScanner is the fold state used by demoteLinks.
type spanScanner struct {
	state spanState
	span  strings.Builder
	out   strings.Builder
}

// flushLiteral emits the pending span as a double-backtick literal.
func (s *spanScanner) flushLiteral() {
	s.out.WriteString("``")
	s.out.WriteString(s.span.String())
	s.out.WriteString("``")
	s.span.Reset()
}

// step is the transition function of the scanner.
func (s *spanScanner) step(c byte) {
	switch s.state {
	case stateRegular:
		if c == '`' {
			s.state = stateOneLeading
			return
		}
		s.out.WriteByte(c)

	case stateOneLeading:
		if c == '`' {
			s.state = stateTwoLeading
			return
		}
		s.out.WriteByte('`')
		s.out.WriteByte(c)
		s.state = stateRegular

	case stateTwoLeading:
		if c != '`' {
			s.span.WriteByte(c)
			return
		}
		if s.span.Len() == 0 {
			// more than two opening ticks
			s.out.WriteByte('`')
			return
		}
		s.state = stateOneTrailing

	case stateOneTrailing:
		if c == '`' {
			s.state = stateTwoTrailing
			return
		}
		s.out.WriteString("``")
		s.out.WriteString(s.span.String())
		s.out.WriteByte('`')
		s.out.WriteByte(c)
		s.span.Reset()
		s.state = stateRegular

	case stateTwoTrailing:
		if c == '_' {
			s.out.WriteByte('`')
			s.out.WriteString(s.span.String())
			s.out.WriteString("`_")
			s.span.Reset()
		} else {
			s.flushLiteral()
			s.out.WriteByte(c)
		}
		s.state = stateRegular
	}
}

// finish flushes whatever is pending at the end of input.
func (s *spanScanner) finish() string {
	switch {
	case s.span.Len() > 0:
		s.flushLiteral()
	case s.state == stateOneLeading:
		s.out.WriteByte('`')
	case s.state == stateTwoLeading:
		s.out.WriteString("``")
	}
	return s.out.String()
}

// demoteLinks walks the bytes of text whose spans are all delimited by double backticks and
// turns the ones directly followed by an underscore back into single-backtick
// hyperlinks.
func demoteLinks(text string) string {
	s := &spanScanner{state: stateRegular}
	for i := 0; i < len(text); i++ {
		s.step(text[i])
	}
	return s.finish()
}
