package changelog

import (
	"regexp"
	"strings"
)

// LineKind is the classification of one inserted diff line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineBoundary
	LineBullet
	LineContinuation
	LineOther
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineBoundary:
		return "boundary"
	case LineBullet:
		return "bullet"
	case LineContinuation:
		return "continuation"
	default:
		return "other"
	}
}

// Classifier sorts raw diff lines (still carrying the single-space insertion
// marker) into line kinds. The boundary is the release header of the version
// being diffed against, e.g. " 1.2.3 (2022-04-20)".
type Classifier struct {
	boundary *regexp.Regexp
}

// NewClassifier returns a Classifier for the given old version label. An empty
// label disables boundary detection.
func NewClassifier(oldVersion string) *Classifier {
	c := &Classifier{}
	if oldVersion != "" {
		c.boundary = regexp.MustCompile(`^ ` + regexp.QuoteMeta(oldVersion) + ` \([0-9]{4}-[0-9]{2}-[0-9]{2}\)\s*$`)
	}
	return c
}

// Classify returns the kind of a single raw line.
func (c *Classifier) Classify(line string) LineKind {
	if strings.TrimSpace(line) == "" {
		return LineBlank
	}
	if c.boundary != nil && c.boundary.MatchString(line) {
		return LineBoundary
	}
	if len(line) == 1 {
		return LineOther
	}
	switch {
	case strings.HasPrefix(line, " *"):
		return LineBullet
	case strings.HasPrefix(line, "  "):
		return LineContinuation
	}
	return LineOther
}

// lineContent strips the marker and indentation from a raw line and escapes
// bare "*." sequences so the asterisk does not open an emphasis span.
func lineContent(line string) string {
	return escapeStarDot(strings.TrimLeft(line, " \t"))
}

func escapeStarDot(s string) string {
	if !strings.Contains(s, "*.") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == '*' && i+1 < len(s) && s[i+1] == '.' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
