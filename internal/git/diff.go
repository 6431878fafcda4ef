package git

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// InsertMarker is the output indicator requested from git for inserted lines.
// The changelog reconstruction expects every inserted line to carry it.
const InsertMarker = ' '

// AddedLines parses raw unified diff output and returns only the inserted
// lines, one per line, re-marked with InsertMarker. File headers, hunk headers
// and removed lines are dropped. indicator is the prefix the diff uses for
// inserted lines ('+' for a plain git diff).
func AddedLines(raw []byte, indicator byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return "", fmt.Errorf("parsing diff: %w", err)
	}

	var b strings.Builder
	for _, d := range fileDiffs {
		for _, hunk := range d.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if len(line) == 0 || line[0] != indicator {
					continue
				}
				b.WriteByte(InsertMarker)
				b.WriteString(line[1:])
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

func changelogAdditions(executor gitCommandExecutor, oldVersion string, file string) (string, error) {
	output, err := executor.execute("git", "diff", "-U0", "--output-indicator-new", string(InsertMarker), oldVersion+"..", "--", file)
	if err != nil {
		return "", fmt.Errorf("Diff Error: %w", err)
	}
	return AddedLines(output, InsertMarker)
}
