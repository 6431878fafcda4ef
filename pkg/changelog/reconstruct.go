package changelog

import (
	"regexp"
	"slices"
	"strings"

	f "github.com/ros-tooling/changelog-collator/pkg/functional"
)

const contributorsPrefix = "* Contributors: "

var contributorsRe = regexp.MustCompile(`^\* Contributors: (.*)`)

// Changelog is the reconstructed changelog of one package for one release window.
type Changelog struct {
	// Entries are normalized bullet lines in diff order. When contributors were
	// found the last entry is the synthesized "* Contributors: ..." line.
	Entries []string
	// Contributors is sorted and free of duplicates.
	Contributors []string
}

// Render returns the entries as a block ready to be embedded in a report.
func (c *Changelog) Render() string {
	return strings.Join(c.Entries, "\n") + "\n\n\n"
}

type reconstructState int

const (
	noOpenEntry reconstructState = iota
	accumulating
)

// reconstructor folds classified lines into logical entries.
type reconstructor struct {
	state        reconstructState
	buffer       strings.Builder
	entries      []string
	contributors f.Set[string]
}

func newReconstructor() *reconstructor {
	return &reconstructor{
		state:        noOpenEntry,
		contributors: f.NewSet[string](),
	}
}

// open starts a new entry, flushing the one being assembled.
func (r *reconstructor) open(content string) {
	r.flush()
	r.buffer.WriteString(content)
	r.state = accumulating
}

// continueEntry folds a wrapped line into the open entry. Continuations seen
// before any bullet are dropped.
func (r *reconstructor) continueEntry(content string) {
	if r.state != accumulating {
		return
	}
	r.buffer.WriteByte(' ')
	r.buffer.WriteString(content)
}

func (r *reconstructor) flush() {
	if r.state != accumulating {
		return
	}
	text := r.buffer.String()
	r.buffer.Reset()
	r.state = noOpenEntry

	if names, ok := ContributorsFromLine(text); ok {
		for _, name := range names {
			r.contributors.Add(name)
		}
		return
	}
	r.entries = append(r.entries, Normalize(text))
}

// Reconstruct rebuilds the logical changelog entries from the inserted lines of
// a diff of one changelog file. Each line still carries its single-space
// insertion marker; diff headers and hunk markers must already be removed.
// Scanning stops at the release header of oldVersion.
//
// The boolean is false when no entries were found, which callers should treat
// as "no changelog content for this window" rather than as an error.
func Reconstruct(diffText string, oldVersion string) (*Changelog, bool) {
	classifier := NewClassifier(oldVersion)
	r := newReconstructor()

scan:
	for _, line := range strings.Split(diffText, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch classifier.Classify(line) {
		case LineBoundary:
			break scan
		case LineBullet:
			r.open(lineContent(line))
		case LineContinuation:
			r.continueEntry(lineContent(line))
		}
	}
	r.flush()

	if len(r.entries) == 0 {
		return nil, false
	}

	contributors := r.contributors.Items()
	slices.Sort(contributors)
	entries := r.entries
	if len(contributors) > 0 {
		entries = append(entries, contributorsPrefix+strings.Join(contributors, ", "))
	}
	return &Changelog{Entries: entries, Contributors: contributors}, true
}

// ContributorsFromLine reports whether entry is a "* Contributors: a, b" line
// and returns the trimmed names it lists.
func ContributorsFromLine(entry string) ([]string, bool) {
	m := contributorsRe.FindStringSubmatch(entry)
	if m == nil {
		return nil, false
	}
	names := make([]string, 0)
	for _, name := range strings.Split(m[1], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names, true
}
