package report

import (
	"io"
	"slices"

	"github.com/fatih/color"

	f "github.com/ros-tooling/changelog-collator/pkg/functional"
)

// WriteSummary prints the checklist of packages that contributed nothing and
// the thank-you list of contributors. Empty lists are omitted.
func WriteSummary(w io.Writer, missing []string, contributors []string) error {
	heading := color.New(color.Bold)
	contributor := color.New(color.FgGreen)

	if len(missing) > 0 {
		sorted := slices.Clone(missing)
		slices.Sort(sorted)
		if _, err := heading.Fprintln(w, "Packages without a changelog, or no changes since last ROS release:"); err != nil {
			return err
		}
		for _, line := range f.Map(sorted, func(name string) string { return "* [ ] " + name }) {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return err
			}
		}
	}

	if len(contributors) > 0 {
		names := f.RemoveDuplicates(slices.Clone(contributors))
		slices.Sort(names)
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if _, err := heading.Fprintf(w, "Thanks to the %d contributors who contributed to this release:\n", len(names)); err != nil {
			return err
		}
		for _, name := range names {
			if _, err := contributor.Fprintln(w, name); err != nil {
				return err
			}
		}
	}
	return nil
}
